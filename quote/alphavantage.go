package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const defaultBaseURL = "https://www.alphavantage.co/query"

type globalQuoteResponse struct {
	GlobalQuote struct {
		Symbol string `json:"01. symbol"`
		Price  string `json:"05. price"`
	} `json:"Global Quote"`
}

type symbolSearchResponse struct {
	BestMatches []struct {
		Symbol string `json:"1. symbol"`
		Name   string `json:"2. name"`
	} `json:"bestMatches"`
}

// AlphaVantage is a Provider backed by the Alpha Vantage query API.
type AlphaVantage struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

func NewAlphaVantage(apiKey string, timeout time.Duration, logger zerolog.Logger) *AlphaVantage {
	return &AlphaVantage{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// WithBaseURL points the client at another endpoint.
func (a *AlphaVantage) WithBaseURL(baseURL string) *AlphaVantage {
	a.baseURL = baseURL
	return a
}

func (a *AlphaVantage) Lookup(ctx context.Context, symbol string) (Quote, error) {
	symbol = Normalize(symbol)
	if symbol == "" {
		return Quote{}, ErrNotFound
	}

	var gq globalQuoteResponse
	if err := a.query(ctx, url.Values{"function": {"GLOBAL_QUOTE"}, "symbol": {symbol}}, &gq); err != nil {
		return Quote{}, err
	}
	if gq.GlobalQuote.Price == "" {
		return Quote{}, ErrNotFound
	}
	price, err := decimal.NewFromString(gq.GlobalQuote.Price)
	if err != nil {
		return Quote{}, fmt.Errorf("parse price %q: %w", gq.GlobalQuote.Price, err)
	}
	if gq.GlobalQuote.Symbol != "" {
		symbol = gq.GlobalQuote.Symbol
	}

	return Quote{Symbol: symbol, Name: a.companyName(ctx, symbol), Price: price}, nil
}

// companyName looks the symbol up in SYMBOL_SEARCH. A failed search is not
// fatal to the quote; the symbol doubles as the name.
func (a *AlphaVantage) companyName(ctx context.Context, symbol string) string {
	var sr symbolSearchResponse
	if err := a.query(ctx, url.Values{"function": {"SYMBOL_SEARCH"}, "keywords": {symbol}}, &sr); err != nil {
		a.logger.Warn().Err(err).Str("symbol", symbol).Msg("symbol search failed")
		return symbol
	}
	for _, m := range sr.BestMatches {
		if m.Symbol == symbol && m.Name != "" {
			return m.Name
		}
	}
	return symbol
}

func (a *AlphaVantage) query(ctx context.Context, params url.Values, out interface{}) error {
	params.Set("apikey", a.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", params.Get("function"), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: unexpected status %s", params.Get("function"), resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", params.Get("function"), err)
	}
	return nil
}
