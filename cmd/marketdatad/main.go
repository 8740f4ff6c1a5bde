package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/archelyst/marketdata-go/internal/cache"
	"github.com/archelyst/marketdata-go/internal/config"
	"github.com/archelyst/marketdata-go/internal/orchestrator"
	"github.com/archelyst/marketdata-go/internal/provider"
	"github.com/archelyst/marketdata-go/internal/types"
)

const version = "v0.1.0"

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	var providersPath string

	rootCmd := &cobra.Command{
		Use:     "marketdatad",
		Short:   "Multi-provider market data orchestrator",
		Version: version,
		Long: `marketdatad fetches quotes, profiles, historical bars, search
results, and market overviews from a registry of failover-aware
providers, attaching data-quality and provenance metadata to every
response.`,
	}
	rootCmd.PersistentFlags().StringVar(&providersPath, "providers", "config/providers.yaml", "path to the provider defaults YAML file")

	rootCmd.AddCommand(
		newQuoteCmd(&providersPath),
		newProfileCmd(&providersPath),
		newHistoricalCmd(&providersPath),
		newSearchCmd(&providersPath),
		newOverviewCmd(&providersPath),
		newHealthCmd(&providersPath),
		newWarmCmd(&providersPath),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// buildSystem wires a config.System for one CLI invocation. Each
// subcommand gets its own System rather than sharing a long-lived
// daemon instance — the registry's health monitor goroutine runs until
// the command's context is cancelled, which for a one-shot CLI call is
// when the command returns.
func buildSystem(ctx context.Context, providersPath string) (*config.System, error) {
	return config.Build(ctx, providersPath, log.Logger)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newQuoteCmd(providersPath *string) *cobra.Command {
	var assetType string
	cmd := &cobra.Command{
		Use:   "quote <symbol>",
		Short: "Fetch a real-time quote",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sym, err := types.NewSymbol(args[0])
			if err != nil {
				return err
			}
			at := types.AssetType(strings.ToLower(assetType))
			if !at.Valid() {
				return fmt.Errorf("invalid --asset-type %q", assetType)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			sys, err := buildSystem(ctx, *providersPath)
			if err != nil {
				return fmt.Errorf("build system: %w", err)
			}

			resp := sys.Orchestrator.GetQuote(ctx, sym, at)
			return printJSON(resp)
		},
	}
	cmd.Flags().StringVar(&assetType, "asset-type", "stock", "asset type (stock|crypto|index|commodity|forex)")
	return cmd
}

func newProfileCmd(providersPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile <symbol>",
		Short: "Fetch company/asset profile information",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sym, err := types.NewSymbol(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			sys, err := buildSystem(ctx, *providersPath)
			if err != nil {
				return fmt.Errorf("build system: %w", err)
			}

			resp := sys.Orchestrator.GetProfile(ctx, sym)
			return printJSON(resp)
		},
	}
	return cmd
}

func newHistoricalCmd(providersPath *string) *cobra.Command {
	var period, interval string
	cmd := &cobra.Command{
		Use:   "historical <symbol>",
		Short: "Fetch historical OHLCV bars",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sym, err := types.NewSymbol(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			sys, err := buildSystem(ctx, *providersPath)
			if err != nil {
				return fmt.Errorf("build system: %w", err)
			}

			params := provider.HistoricalParams{
				Symbol:   sym,
				Period:   types.Period(period),
				Interval: types.Interval(interval),
			}
			resp := sys.Orchestrator.GetHistorical(ctx, params)
			return printJSON(resp)
		},
	}
	cmd.Flags().StringVar(&period, "period", "1y", "lookback period (1d|5d|1m|3m|6m|1y|2y|5y|10y|ytd|max)")
	cmd.Flags().StringVar(&interval, "interval", "1d", "bar interval (1m|2m|5m|15m|30m|60m|90m|1h|1d|5d|1wk|1mo|3mo)")
	return cmd
}

func newSearchCmd(providersPath *string) *cobra.Command {
	var limit int
	var assetTypes string
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search for symbols by name or ticker fragment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			sys, err := buildSystem(ctx, *providersPath)
			if err != nil {
				return fmt.Errorf("build system: %w", err)
			}

			var filter []types.AssetType
			if assetTypes != "" {
				for _, a := range strings.Split(assetTypes, ",") {
					filter = append(filter, types.AssetType(strings.ToLower(strings.TrimSpace(a))))
				}
			}

			resp := sys.Orchestrator.Search(ctx, args[0], filter, limit)
			return printJSON(resp)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum number of results")
	cmd.Flags().StringVar(&assetTypes, "asset-types", "", "comma-separated asset type filter (e.g. stock,crypto)")
	return cmd
}

func newOverviewCmd(providersPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "overview",
		Short: "Fetch the market overview (indices, crypto, commodities, forex)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			sys, err := buildSystem(ctx, *providersPath)
			if err != nil {
				return fmt.Errorf("build system: %w", err)
			}

			resp := sys.Orchestrator.GetMarketOverview(ctx)
			return printJSON(resp)
		},
	}
	return cmd
}

func newWarmCmd(providersPath *string) *cobra.Command {
	var symbols string
	cmd := &cobra.Command{
		Use:   "warm",
		Short: "Pre-populate the cache for a list of popular symbols",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			sys, err := buildSystem(ctx, *providersPath)
			if err != nil {
				return fmt.Errorf("build system: %w", err)
			}

			warmCfg := cache.DefaultWarmConfig()
			if symbols != "" {
				warmCfg.Symbols = strings.Split(symbols, ",")
			}

			stats := sys.Cache.Warm(ctx, warmCfg, func(ctx context.Context, providerName string, level cache.Level, symbol string) (bool, error) {
				adapter, ok := sys.Registry.Adapter(providerName)
				if !ok {
					return false, fmt.Errorf("no adapter registered for provider %q", providerName)
				}
				sym, err := types.NewSymbol(symbol)
				if err != nil {
					return false, err
				}

				ctx, meta := provider.WithCacheMetaTracker(ctx)
				if level == cache.LevelProfiles {
					_, err = adapter.GetProfile(ctx, sym)
				} else {
					_, err = adapter.GetQuote(ctx, sym)
				}
				if err != nil {
					return false, err
				}
				return meta.Hit, nil
			})
			return printJSON(stats)
		},
	}
	cmd.Flags().StringVar(&symbols, "symbols", "", "comma-separated symbols to warm (defaults to the built-in popular set)")
	return cmd
}

func newHealthCmd(providersPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Report provider registry health and failover statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			sys, err := buildSystem(ctx, *providersPath)
			if err != nil {
				return fmt.Errorf("build system: %w", err)
			}

			var snapshot orchestrator.HealthSnapshot = sys.Orchestrator.GetSystemHealth()
			return printJSON(snapshot)
		},
	}
	return cmd
}
