package api

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
)

// DefaultPaginationTimeout bounds a full pagination run when the caller's
// context has no deadline.
const DefaultPaginationTimeout = 10 * time.Minute

// GetMarkets fetches a page of markets.
func (c *Client) GetMarkets(ctx context.Context, opts GetMarketsOptions) (*MarketsResponse, error) {
	query := url.Values{}

	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		query.Set("cursor", opts.Cursor)
	}
	if opts.EventTicker != "" {
		query.Set("event_ticker", opts.EventTicker)
	}
	if opts.SeriesTicker != "" {
		query.Set("series_ticker", opts.SeriesTicker)
	}
	if len(opts.Tickers) > 0 {
		query.Set("tickers", strings.Join(opts.Tickers, ","))
	}
	if opts.Status != "" {
		query.Set("status", opts.Status)
	}

	var resp MarketsResponse
	if err := c.get(ctx, "/markets", query, &resp); err != nil {
		return nil, fmt.Errorf("get markets: %w", err)
	}

	return &resp, nil
}

// GetAllMarketsWithOptions fetches all markets matching the given options.
// opts.Limit defaults to the maximum page size; opts.MaxPages > 0 stops
// after that many pages. Uses DefaultPaginationTimeout if the context has
// no deadline.
func (c *Client) GetAllMarketsWithOptions(ctx context.Context, opts GetMarketsOptions) ([]APIMarket, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultPaginationTimeout)
		defer cancel()
	}

	var allMarkets []APIMarket
	if opts.Limit <= 0 {
		opts.Limit = 1000 // Max page size
	}

	for page := 0; opts.MaxPages <= 0 || page < opts.MaxPages; page++ {
		resp, err := c.GetMarkets(ctx, opts)
		if err != nil {
			return nil, err
		}

		allMarkets = append(allMarkets, resp.Markets...)

		if resp.Cursor == "" {
			break
		}
		opts.Cursor = resp.Cursor
	}

	return allMarkets, nil
}

// ListMarkets runs one paginated query per status (the API accepts a single
// status filter per request), keeps tickers starting with prefix
// (case-insensitive) and returns them sorted by ticker.
func (c *Client) ListMarkets(ctx context.Context, opts GetMarketsOptions, statuses []string, prefix string) ([]APIMarket, error) {
	if len(statuses) == 0 {
		statuses = []string{""}
	}
	prefix = strings.ToLower(strings.TrimSpace(prefix))

	var out []APIMarket
	for _, st := range statuses {
		q := opts
		q.Status = strings.TrimSpace(st)
		q.Cursor = ""

		markets, err := c.GetAllMarketsWithOptions(ctx, q)
		if err != nil {
			return nil, err
		}
		for _, m := range markets {
			ticker := strings.TrimSpace(m.Ticker)
			if ticker == "" {
				continue
			}
			if prefix != "" && !strings.HasPrefix(strings.ToLower(ticker), prefix) {
				continue
			}
			out = append(out, m)
		}
	}

	slices.SortStableFunc(out, func(a, b APIMarket) int {
		return strings.Compare(a.Ticker, b.Ticker)
	})
	return out, nil
}

// GetMarket fetches a single market by ticker.
func (c *Client) GetMarket(ctx context.Context, ticker string) (*APIMarket, error) {
	var resp SingleMarketResponse
	if err := c.get(ctx, "/markets/"+ticker, nil, &resp); err != nil {
		return nil, fmt.Errorf("get market %s: %w", ticker, err)
	}
	return &resp.Market, nil
}

// GetOrderbook fetches the orderbook for a market.
func (c *Client) GetOrderbook(ctx context.Context, ticker string, depth int) (*OrderbookResponse, error) {
	query := url.Values{}
	if depth > 0 {
		query.Set("depth", strconv.Itoa(depth))
	}

	var resp OrderbookResponse
	if err := c.get(ctx, "/markets/"+ticker+"/orderbook", query, &resp); err != nil {
		return nil, fmt.Errorf("get orderbook %s: %w", ticker, err)
	}

	return &resp, nil
}
