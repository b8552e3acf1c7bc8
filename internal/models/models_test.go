package models

import (
	"errors"
	"testing"

	"github.com/navid-fn/tradesniper/internal/failure"
	"github.com/navid-fn/tradesniper/internal/jsonvalue"
)

const fetchBody = `{"result":[{"id":"aaaa","listing":{"indexed":"2025-09-01T10:00:00Z","stash":{"name":"~b/o","x":3,"y":4},
"hideout_token":"eyJhbGciOi.eyJzdWIiOi.c2ln","account":{"name":"seller#1234"},"price":{"type":"~price","amount":1.5,"currency":"divine"}},
"item":{"name":"","typeLine":"Sapphire Ring"}}]}`

func TestParseListing(t *testing.T) {
	body, err := jsonvalue.Parse([]byte(fetchBody))
	if err != nil {
		t.Fatal(err)
	}

	l, err := ParseListing(body)
	if err != nil {
		t.Fatalf("ParseListing failed: %v", err)
	}

	if l.Stash.X != 3 || l.Stash.Y != 4 {
		t.Errorf("Expected stash 3,4, got %d,%d", l.Stash.X, l.Stash.Y)
	}
	if l.Account != "seller#1234" {
		t.Errorf("Expected account seller#1234, got %s", l.Account)
	}
	if l.Item.DisplayName() != "Sapphire Ring" {
		t.Errorf("Expected type line fallback, got %s", l.Item.DisplayName())
	}
	if l.Price.Amount.String() != "1.5" || l.Price.Currency != "divine" {
		t.Errorf("Unexpected price %s %s", l.Price.Amount, l.Price.Currency)
	}
	if l.HideoutToken != "eyJhbGciOi.eyJzdWIiOi.c2ln" {
		t.Errorf("Unexpected hideout token %s", l.HideoutToken)
	}
	if l.IndexedAt.IsZero() {
		t.Error("Expected indexed time to be parsed")
	}
}

func TestParseListingMalformed(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		missing string
	}{
		{"empty result", `{"result":[]}`, "result[0]"},
		{"no result", `{"error":{"code":2}}`, "result[0]"},
		{"no listing", `{"result":[{"id":"x","item":{}}]}`, "listing"},
		{"listing not object", `{"result":[{"listing":"x"}]}`, "listing"},
		{"no stash", `{"result":[{"listing":{"account":{"name":"a"}}}]}`, "stash"},
		{"fractional stash", `{"result":[{"listing":{"stash":{"x":1.5,"y":2}}}]}`, "stash"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := jsonvalue.Parse([]byte(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			_, err = ParseListing(body)
			var malformed *failure.MalformedListingError
			if !errors.As(err, &malformed) {
				t.Fatalf("Expected MalformedListingError, got %v", err)
			}
			if malformed.Missing != tt.missing {
				t.Errorf("Expected missing %q, got %q", tt.missing, malformed.Missing)
			}
		})
	}
}

func TestHideoutTokenOf(t *testing.T) {
	body, _ := jsonvalue.Parse([]byte(fetchBody))
	if got := HideoutTokenOf(body); got != "eyJhbGciOi.eyJzdWIiOi.c2ln" {
		t.Errorf("Unexpected token %q", got)
	}
	if got := HideoutTokenOf(jsonvalue.Array{}); got != "" {
		t.Errorf("Expected empty token, got %q", got)
	}
}

func TestBuildCookie(t *testing.T) {
	tests := []struct {
		sess, cf, want string
	}{
		{"abc", "def", "POESESSID=abc; cf_clearance=def"},
		{"abc", "", "POESESSID=abc"},
		{"", "def", "cf_clearance=def"},
		{"", "", ""},
	}
	for _, tt := range tests {
		if got := BuildCookie(tt.sess, tt.cf); got != tt.want {
			t.Errorf("BuildCookie(%q, %q) = %q, want %q", tt.sess, tt.cf, got, tt.want)
		}
	}
}

func TestStateNames(t *testing.T) {
	if StateAwaitingGrant.String() != "awaiting_grant" {
		t.Errorf("Unexpected name %s", StateAwaitingGrant)
	}
	b, _ := AutobuyPaused.MarshalText()
	if string(b) != "paused" {
		t.Errorf("Unexpected text %s", b)
	}
}
