// Command markets lists Kalshi markets through the REST API. It is an
// operator helper for picking tickers to record.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rickgao/kalshi-bot/internal/api"
	"github.com/rickgao/kalshi-bot/internal/auth"
	"github.com/rickgao/kalshi-bot/internal/config"
	"github.com/rickgao/kalshi-bot/internal/version"
)

type options struct {
	config    string
	env       string
	series    string
	ticker    string
	statuses  string
	prefix    string
	limit     int
	maxPages  int
	asJSON    bool
	checkAuth bool
}

func main() {
	var opts options
	flag.StringVar(&opts.config, "config", "", "path to config file (defaults apply when empty)")
	flag.StringVar(&opts.env, "env", "", "demo or prod (overrides kalshi.env)")
	flag.StringVar(&opts.series, "series", "", "series ticker (defaults to kalshi.series)")
	flag.StringVar(&opts.ticker, "ticker", "", "show a single market instead of listing the series")
	flag.StringVar(&opts.statuses, "status", "open,unopened", "comma-separated market statuses")
	flag.StringVar(&opts.prefix, "prefix", "", "only list tickers starting with this prefix")
	flag.IntVar(&opts.limit, "limit", 200, "page size")
	flag.IntVar(&opts.maxPages, "max-pages", 20, "maximum pages per status")
	flag.BoolVar(&opts.asJSON, "json", false, "print markets as JSON")
	flag.BoolVar(&opts.checkAuth, "auth", false, "verify credentials by fetching the portfolio balance")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := run(ctx, opts, os.Stdout); err != nil {
		slog.Error("markets failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, stdout io.Writer) error {
	cfg, err := config.LoadOrDefault(opts.config)
	if err != nil {
		return err
	}
	if opts.env != "" {
		cfg.SetKalshiEnv(opts.env)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	series := opts.series
	if series == "" {
		series = cfg.Kalshi.Series
	}

	logger, err := cfg.Log.NewLogger(os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	clientOpts := []api.ClientOption{
		api.WithUserAgent(version.UserAgent()),
		api.WithTimeout(cfg.Kalshi.Timeout),
		api.WithRetries(cfg.Kalshi.MaxRetries, time.Second),
		api.WithLogger(logger),
	}
	if opts.checkAuth {
		creds, err := auth.LoadCredentials(cfg.Kalshi.APIKey, cfg.Kalshi.PrivateKeyPath)
		if err != nil {
			return err
		}
		clientOpts = append(clientOpts, api.WithSigner(creds))
	}
	client := api.NewClient(cfg.Kalshi.RestURL, clientOpts...)

	if opts.checkAuth {
		bal, err := client.GetBalance(ctx)
		if err != nil {
			return fmt.Errorf("auth check: %w", err)
		}
		logger.Info("auth ok", "env", cfg.Kalshi.Env, "balance_cents", bal.Balance)
	}

	var markets []api.APIMarket
	if opts.ticker != "" {
		m, err := client.GetMarket(ctx, opts.ticker)
		if err != nil {
			return err
		}
		markets = []api.APIMarket{*m}
	} else if markets, err = listMarkets(ctx, client, series, opts); err != nil {
		return err
	}

	if opts.asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(markets)
	}
	return printTable(stdout, markets)
}

func listMarkets(ctx context.Context, client *api.Client, series string, opts options) ([]api.APIMarket, error) {
	markets, err := client.ListMarkets(ctx, api.GetMarketsOptions{
		SeriesTicker: series,
		Limit:        opts.limit,
		MaxPages:     opts.maxPages,
	}, splitList(opts.statuses), opts.prefix)
	if err != nil {
		return nil, err
	}
	slog.Info("markets listed", "series", series, "count", len(markets))
	return markets, nil
}

func printTable(w io.Writer, markets []api.APIMarket) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TICKER\tSTATUS\tYES_BID\tYES_ASK\tCLOSE_TIME")
	for _, m := range markets {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", m.Ticker, m.Status, m.YesBid, m.YesAsk, m.CloseTime)
	}
	return tw.Flush()
}

// splitList splits a comma-separated flag, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
