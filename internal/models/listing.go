package models

import (
	"time"

	"github.com/navid-fn/tradesniper/internal/failure"
	"github.com/navid-fn/tradesniper/internal/jsonvalue"

	"github.com/shopspring/decimal"
)

// Listing is one fetched trade listing. It lives only for the attempt that fetched it.
type Listing struct {
	// ID is the trade identifier (64 hex characters).
	ID string `json:"id"`

	Item Item `json:"item"`

	// Account is the seller's account name.
	Account string `json:"account"`

	Stash Stash `json:"stash"`

	// Price is optional; zero Amount with empty Currency means unpriced.
	Price Price `json:"price"`

	// HideoutToken is the listing's whisper token as returned by the site.
	HideoutToken string `json:"-"`

	IndexedAt time.Time `json:"indexed_at"`

	// Raw is the full fetch response the listing was parsed from.
	Raw jsonvalue.Value `json:"-"`
}

// Item describes the listed item.
type Item struct {
	Name     string `json:"name"`
	TypeLine string `json:"type_line"`
}

// DisplayName returns the item name, falling back to its base type.
func (i Item) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	if i.TypeLine != "" {
		return i.TypeLine
	}
	return "Unknown Item"
}

// Stash is a grid cell inside the seller's stash tab.
type Stash struct {
	Name string `json:"name"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

// Price is the seller's asking price.
type Price struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// ParseListing reads result[0] of a trade fetch response.
// A response without a listing or stash position cannot be bought and yields MalformedListingError.
func ParseListing(body jsonvalue.Value) (*Listing, error) {
	result, ok := jsonvalue.Lookup(body, "result", 0)
	if !ok {
		return nil, &failure.MalformedListingError{Missing: "result[0]"}
	}
	listing, ok := jsonvalue.Lookup(result, "listing")
	if !ok {
		return nil, &failure.MalformedListingError{Missing: "listing"}
	}
	if _, ok := listing.(jsonvalue.Object); !ok {
		return nil, &failure.MalformedListingError{Missing: "listing"}
	}

	x, okX := jsonvalue.LookupNumber(listing, "stash", "x")
	y, okY := jsonvalue.LookupNumber(listing, "stash", "y")
	if !okX || !okY {
		return nil, &failure.MalformedListingError{Missing: "stash"}
	}
	sx, errX := x.Int64()
	sy, errY := y.Int64()
	if errX != nil || errY != nil {
		return nil, &failure.MalformedListingError{Missing: "stash"}
	}

	l := &Listing{
		Stash: Stash{X: int(sx), Y: int(sy)},
		Raw:   body,
	}
	l.ID, _ = jsonvalue.LookupString(result, "id")
	l.Item.Name, _ = jsonvalue.LookupString(result, "item", "name")
	l.Item.TypeLine, _ = jsonvalue.LookupString(result, "item", "typeLine")
	l.Account, _ = jsonvalue.LookupString(listing, "account", "name")
	l.Stash.Name, _ = jsonvalue.LookupString(listing, "stash", "name")
	l.HideoutToken, _ = jsonvalue.LookupString(listing, "hideout_token")

	if amount, ok := jsonvalue.LookupNumber(listing, "price", "amount"); ok {
		if d, err := decimal.NewFromString(string(amount)); err == nil {
			l.Price.Amount = d
		}
	}
	l.Price.Currency, _ = jsonvalue.LookupString(listing, "price", "currency")

	if indexed, ok := jsonvalue.LookupString(listing, "indexed"); ok {
		if ts, err := time.Parse(time.RFC3339, indexed); err == nil {
			l.IndexedAt = ts
		}
	}

	return l, nil
}

// HideoutTokenOf returns result[0].listing.hideout_token of a stream or fetch payload, if present.
func HideoutTokenOf(payload jsonvalue.Value) string {
	token, _ := jsonvalue.LookupString(payload, "result", 0, "listing", "hideout_token")
	return token
}
