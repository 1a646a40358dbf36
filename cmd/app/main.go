package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"tradexec/internal/domain"
	"tradexec/internal/engine"
	"tradexec/internal/infra"
	"tradexec/internal/ledger"
	"tradexec/internal/venue"
	"tradexec/internal/venue/bybit"
	"tradexec/internal/venue/hyperliquid"
	"tradexec/internal/venue/solana"
)

func main() {
	var (
		venueFlag    = flag.String("venue", "", "execution venue: bybit, hyperliquid or solana")
		symbolFlag   = flag.String("symbol", "", "instrument symbol or token mint")
		sideFlag     = flag.String("side", "", "buy/long or sell/short")
		amountFlag   = flag.String("amount", "", "order size (venue units; quote-asset amount on solana buys)")
		leverageFlag = flag.Int("leverage", 0, "leverage for perpetual venues (0 = leave unchanged)")
		slippageFlag = flag.Int("slippage-bps", 0, "slippage tolerance in basis points (0 = default)")
		timeoutFlag  = flag.Duration("timeout", 0, "confirmation wait bound (0 = default)")
		configFlag   = flag.String("config", "", "path to config.yaml")
		versionFlag  = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *versionFlag {
		fmt.Println(infra.AppName, "1.0.0")
		return
	}

	configPath := *configFlag
	if configPath == "" {
		configPath = infra.ResolveConfigPath()
	}
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		slog.Error("Config load failed", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}
	setupLogging(cfg.Logging.Level)

	intent, err := buildIntent(cfg, *venueFlag, *symbolFlag, *sideFlag, *amountFlag,
		*leverageFlag, *slippageFlag, *timeoutFlag)
	if err != nil {
		slog.Error("Invalid arguments", slog.Any("error", err))
		flag.Usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink, tracer, cleanup := openLedger(cfg)
	defer cleanup()

	// Live price stream for the CEX path; the adapter falls back to REST
	// when the stream has no price yet.
	var ticker *bybit.TickerWorker
	if intent.Venue == domain.VenueBybit {
		if pair := bybit.PairSymbol(intent.Symbol); pair != "" {
			ticker = bybit.NewTickerWorker(cfg.Venues.Bybit.WSURL, []string{pair})
			if err := ticker.Connect(ctx); err != nil {
				slog.Warn("Ticker stream unavailable, using REST prices", slog.Any("error", err))
				ticker = nil
			} else {
				defer ticker.Disconnect()
			}
		}
	}

	coordinator := engine.NewCoordinator(adapterRegistry(cfg, tracer, ticker), sink)
	result, _ := coordinator.Execute(ctx, intent)

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		slog.Error("Result marshal failed", slog.Any("error", err))
		os.Exit(1)
	}
	fmt.Println(string(out))

	if !result.Success {
		os.Exit(1)
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func buildIntent(cfg *infra.Config, venueStr, symbol, sideStr, amountStr string,
	leverage, slippageBps int, timeout time.Duration) (domain.TradeIntent, error) {

	v, err := domain.ParseVenue(venueStr)
	if err != nil {
		return domain.TradeIntent{}, err
	}
	side, err := domain.ParseSide(sideStr)
	if err != nil {
		return domain.TradeIntent{}, err
	}
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return domain.TradeIntent{}, domain.NewInputError(fmt.Sprintf("invalid amount: %q", amountStr), err)
	}

	intent := domain.NewTradeIntent(symbol, side, amount, v)
	intent.Leverage = leverage
	intent.Credentials = cfg.Credentials(v)
	intent.Constraints = domain.Constraints{
		MaxSlippageBps: slippageBps,
		TimeLimit:      timeout,
	}
	return intent, intent.Validate()
}

// openLedger opens the durable trade ledger and debug trace writer. Either
// failing degrades to an in-memory / no-op substitute: persistence faults
// never block an execution.
func openLedger(cfg *infra.Config) (ledger.Sink, ledger.Tracer, func()) {
	workspace := infra.GetWorkspaceDir()
	if err := infra.EnsureDir(workspace); err != nil {
		slog.Warn("Workspace unavailable, ledger is in-memory only", slog.Any("error", err))
		return ledger.NewMemorySink(), ledger.NopTracer{}, func() {}
	}

	dbPath := cfg.Ledger.DBPath
	if dbPath == "" {
		dbPath = filepath.Join(workspace, "ledger.db")
	}
	var sink ledger.Sink
	cleanup := func() {}
	store, err := ledger.NewStore(dbPath)
	if err != nil {
		slog.Warn("Ledger store unavailable, falling back to memory", slog.Any("error", err))
		sink = ledger.NewMemorySink()
	} else {
		sink = store
		cleanup = func() { _ = store.Close() }
	}

	traceDir := cfg.Ledger.TraceDir
	if traceDir == "" {
		traceDir = filepath.Join(workspace, "traces")
	}
	var tracer ledger.Tracer = ledger.NopTracer{}
	if tw, err := ledger.NewTraceWriter(traceDir); err != nil {
		slog.Warn("Trace dir unavailable, traces disabled", slog.Any("error", err))
	} else {
		tracer = tw
	}

	return sink, tracer, cleanup
}

func adapterRegistry(cfg *infra.Config, tracer ledger.Tracer, ticker *bybit.TickerWorker) map[domain.Venue]engine.AdapterFactory {
	return map[domain.Venue]engine.AdapterFactory{
		domain.VenueBybit: func(intent domain.TradeIntent) (venue.Adapter, error) {
			return bybit.NewAdapter(cfg.Venues.Bybit.RestURL, intent.Credentials, tracer, ticker)
		},
		domain.VenueHyperliquid: func(intent domain.TradeIntent) (venue.Adapter, error) {
			return hyperliquid.NewAdapter(cfg.Venues.Hyperliquid.APIURL, intent.Credentials, tracer)
		},
		domain.VenueSolana: func(intent domain.TradeIntent) (venue.Adapter, error) {
			return solana.NewAdapter(solana.Config{
				RPCURL:            cfg.Venues.Solana.RPCURL,
				JupiterURL:        cfg.Venues.Solana.JupiterURL,
				Commitment:        cfg.Venues.Solana.Commitment,
				QuoteMint:         cfg.Venues.Solana.QuoteMint,
				SlippageBps:       cfg.Execution.DefaultSlippageBps,
				BroadcastAttempts: cfg.Execution.BroadcastAttempts,
				ConfirmTimeout:    cfg.ConfirmTimeout(),
			}, intent.Credentials, tracer, nil)
		},
	}
}
