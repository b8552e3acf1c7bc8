// Package extract finds trade identifiers and whisper tokens anywhere inside a JSON document.
package extract

import (
	"iter"
	"regexp"
	"slices"

	"github.com/navid-fn/tradesniper/internal/dedup"
	"github.com/navid-fn/tradesniper/internal/jsonvalue"
)

var (
	tradeIDPattern = regexp.MustCompile(`^[a-fA-F0-9]{64}$`)
	tokenPattern   = regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+$`)
)

// IsTradeID reports whether s has the trade identifier shape.
func IsTradeID(s string) bool {
	return tradeIDPattern.MatchString(s)
}

// IsWhisperToken reports whether s has the three-segment bearer token shape.
func IsWhisperToken(s string) bool {
	return tokenPattern.MatchString(s)
}

// TradeIDs yields every trade-identifier-shaped string in depth-first order.
// Each call starts a fresh traversal.
func TradeIDs(v jsonvalue.Value) iter.Seq[string] {
	return matching(v, IsTradeID)
}

// WhisperTokens yields every token-shaped string in depth-first order.
func WhisperTokens(v jsonvalue.Value) iter.Seq[string] {
	return matching(v, IsWhisperToken)
}

// NewWhisperTokens yields only tokens not yet recorded in the filter, marking each one
// as it is yielded. Tokens already seen are skipped silently.
func NewWhisperTokens(v jsonvalue.Value, filter *dedup.Filter) iter.Seq[string] {
	return func(yield func(string) bool) {
		for token := range WhisperTokens(v) {
			if !filter.TryMark(dedup.Tokens, token) {
				continue
			}
			if !yield(token) {
				return
			}
		}
	}
}

// NewTradeIDs returns the distinct trade ids in v that the filter has not seen,
// in document order. It does not mark anything.
func NewTradeIDs(v jsonvalue.Value, filter *dedup.Filter) []string {
	var ids []string
	for id := range TradeIDs(v) {
		if filter.Seen(dedup.TradeIDs, id) || slices.Contains(ids, id) {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func matching(v jsonvalue.Value, match func(string) bool) iter.Seq[string] {
	return func(yield func(string) bool) {
		for s := range jsonvalue.Strings(v) {
			if match(s) && !yield(s) {
				return
			}
		}
	}
}
