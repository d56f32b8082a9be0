// Package quote looks up current stock prices.
package quote

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("symbol not found")

type Quote struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
}

// Provider resolves a ticker symbol to its current quote. Implementations
// return ErrNotFound for unknown symbols.
type Provider interface {
	Lookup(ctx context.Context, symbol string) (Quote, error)
}

// Normalize trims and upper-cases a ticker symbol.
func Normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Fixed is an in-memory Provider keyed by upper-case symbol.
type Fixed map[string]Quote

func (f Fixed) Lookup(_ context.Context, symbol string) (Quote, error) {
	q, ok := f[Normalize(symbol)]
	if !ok {
		return Quote{}, ErrNotFound
	}
	return q, nil
}

// Set stores or replaces the quote for symbol.
func (f Fixed) Set(symbol, name string, price decimal.Decimal) {
	symbol = Normalize(symbol)
	f[symbol] = Quote{Symbol: symbol, Name: name, Price: price}
}
