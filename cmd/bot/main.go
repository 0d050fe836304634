package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/0xRhota/pacifica-trading-bot-sub002/internal/infrastructure/decision"
	"github.com/0xRhota/pacifica-trading-bot-sub002/internal/infrastructure/exchange"
	"github.com/0xRhota/pacifica-trading-bot-sub002/internal/infrastructure/logger"
	"github.com/0xRhota/pacifica-trading-bot-sub002/internal/infrastructure/metrics"
	"github.com/0xRhota/pacifica-trading-bot-sub002/internal/infrastructure/storage"
	"github.com/0xRhota/pacifica-trading-bot-sub002/internal/usecase"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Exchange struct {
		RESTEndpoint  string `yaml:"rest_endpoint"`
		WSEndpoint    string `yaml:"ws_endpoint"`
		PriceMaxAgeMs int    `yaml:"price_max_age_ms"`
	} `yaml:"exchange"`
	Decision struct {
		Endpoint  string `yaml:"endpoint"`
		TimeoutMs int    `yaml:"timeout_ms"`
	} `yaml:"decision"`
	Monitor struct {
		IntervalMs     int `yaml:"interval_ms"`
		PriceTimeoutMs int `yaml:"price_timeout_ms"`
	} `yaml:"monitor"`
	Orchestrator struct {
		IntervalSec int    `yaml:"interval_sec"`
		MaxAgeMin   int    `yaml:"max_age_min"`
		Strategy    string `yaml:"strategy"`
	} `yaml:"orchestrator"`
	Sizing struct {
		BaseSize        float64 `yaml:"base_size"`
		MinNotional     float64 `yaml:"min_notional"`
		MaxNotional     float64 `yaml:"max_notional"`
		BaselineWinRate float64 `yaml:"baseline_win_rate"`
		MinTrades       int     `yaml:"min_trades"`
	} `yaml:"sizing"`
	Strategies struct {
		TimeCapped struct {
			TakeProfitPct float64 `yaml:"take_profit_pct"`
			StopLossPct   float64 `yaml:"stop_loss_pct"`
			MaxHoldMin    int     `yaml:"max_hold_min"`
		} `yaml:"time_capped"`
		Trailing struct {
			StopLossPct      float64 `yaml:"stop_loss_pct"`
			TakeProfitPct    float64 `yaml:"take_profit_pct"`
			ActivationPct    float64 `yaml:"activation_pct"`
			TrailDistancePct float64 `yaml:"trail_distance_pct"`
		} `yaml:"trailing"`
	} `yaml:"strategies"`
	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
	Logging struct {
		Level    string `yaml:"level"`
		Encoding string `yaml:"encoding"`
	} `yaml:"logging"`
	Metrics struct {
		Port int `yaml:"port"`
	} `yaml:"metrics"`
}

func loadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func main() {
	// Secrets come from the environment, never from YAML. A missing .env is
	// fine in deployments that export the variables directly.
	_ = godotenv.Load()

	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Encoding)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	store, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	gateway := exchange.NewPacificaAdapter(
		os.Getenv("PACIFICA_API_KEY"),
		os.Getenv("PACIFICA_API_SECRET"),
		cfg.Exchange.RESTEndpoint,
		cfg.Exchange.WSEndpoint,
		time.Duration(cfg.Exchange.PriceMaxAgeMs)*time.Millisecond,
		log,
	)

	registry := usecase.NewPositionRegistry()
	strategies := usecase.NewStrategySet(
		&usecase.TimeCappedStrategy{
			TakeProfitPct: cfg.Strategies.TimeCapped.TakeProfitPct,
			StopLossPct:   cfg.Strategies.TimeCapped.StopLossPct,
			MaxHold:       time.Duration(cfg.Strategies.TimeCapped.MaxHoldMin) * time.Minute,
		},
		&usecase.TrailingStopStrategy{
			StopLossPct:      cfg.Strategies.Trailing.StopLossPct,
			TakeProfitPct:    cfg.Strategies.Trailing.TakeProfitPct,
			ActivationPct:    cfg.Strategies.Trailing.ActivationPct,
			TrailDistancePct: cfg.Strategies.Trailing.TrailDistancePct,
		},
	)
	if _, ok := strategies.ForTag(cfg.Orchestrator.Strategy); !ok {
		log.Fatal("Unknown exit strategy in config", zap.String("strategy", cfg.Orchestrator.Strategy))
	}

	sizingCfg := usecase.DefaultSizingConfig()
	sizingCfg.BaseSize = cfg.Sizing.BaseSize
	sizingCfg.MinNotional = cfg.Sizing.MinNotional
	sizingCfg.MaxNotional = cfg.Sizing.MaxNotional
	if cfg.Sizing.BaselineWinRate > 0 {
		sizingCfg.BaselineWinRate = cfg.Sizing.BaselineWinRate
	}
	sizing := usecase.NewSizingEngine(sizingCfg)

	perf := usecase.NewPerformanceTracker(store, cfg.Sizing.MinTrades, log)
	executor := usecase.NewTradeExecutor(registry, gateway, store, log)

	monitor := usecase.NewExitMonitor(registry, gateway, executor, strategies, usecase.ExitMonitorConfig{
		Interval:     time.Duration(cfg.Monitor.IntervalMs) * time.Millisecond,
		PriceTimeout: time.Duration(cfg.Monitor.PriceTimeoutMs) * time.Millisecond,
	}, log)

	orchestrator := usecase.NewOrchestrator(
		registry,
		executor,
		sizing,
		perf,
		decision.NewHTTPProvider(cfg.Decision.Endpoint),
		gateway,
		store,
		usecase.OrchestratorConfig{
			Interval:        time.Duration(cfg.Orchestrator.IntervalSec) * time.Second,
			MaxPositionAge:  time.Duration(cfg.Orchestrator.MaxAgeMin) * time.Minute,
			DecisionTimeout: time.Duration(cfg.Decision.TimeoutMs) * time.Millisecond,
			StrategyTag:     cfg.Orchestrator.Strategy,
		},
		log,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := gateway.ConnectWS(ctx); err != nil {
		// REST alone still works; the monitor just pays a fetch per symbol.
		log.Warn("price stream unavailable, falling back to REST prices", zap.Error(err))
	}

	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: metrics.Handler(),
	}

	// The two loops are scheduled independently: the orchestrator's long
	// decision call must never block a monitor tick.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		monitor.Run(gctx)
		return nil
	})
	g.Go(func() error {
		orchestrator.Run(gctx)
		return nil
	})
	g.Go(func() error {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	log.Info("bot started", zap.Int("metrics_port", cfg.Metrics.Port))
	if err := g.Wait(); err != nil {
		log.Fatal("bot exited with error", zap.Error(err))
	}
	log.Info("bot stopped")
}
