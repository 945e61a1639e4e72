package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/nats-io/nats.go"
	"gorm.io/gorm"

	"github.com/tiplinehq/tipline/internal/poller"
	"github.com/tiplinehq/tipline/pkg/common/config"
	"github.com/tiplinehq/tipline/pkg/common/logger"
	"github.com/tiplinehq/tipline/pkg/events"
	"github.com/tiplinehq/tipline/pkg/infra"
	"github.com/tiplinehq/tipline/pkg/kvstore"
	"github.com/tiplinehq/tipline/pkg/model"
	"github.com/tiplinehq/tipline/pkg/repository"
	"github.com/tiplinehq/tipline/pkg/retry"
	"github.com/tiplinehq/tipline/pkg/seencache"
)

var version = "dev"

type CLI struct {
	Run    RunCmd    `cmd:"" help:"Run the payout engine."`
	Events EventsCmd `cmd:"" help:"Print payout events from NATS."`
}

type RunCmd struct {
	ConfigPath string `help:"Path to config file." default:"configs/config.yaml" name:"config"`
	Debug      bool   `help:"Enable debug logs." name:"debug"`
}

type EventsCmd struct {
	NATSURL string `help:"NATS server URL." default:"nats://127.0.0.1:4222" name:"nats-url"`
	Subject string `help:"NATS subject to subscribe to." default:"tipline.payout" name:"subject"`
}

func (c *RunCmd) Run() error {
	runEngine(c.ConfigPath, c.Debug)
	return nil
}

func (c *EventsCmd) Run() error {
	runEventsPrinter(c.NATSURL, c.Subject)
	return nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("tipline"),
		kong.Description("Social command payout engine."),
		kong.UsageOnError(),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}

func runEngine(configPath string, debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger.Init(&logger.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	})

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("Load config failed", "err", err)
	}
	logger.Info("Config loaded", "environment", cfg.Environment, "chain", cfg.Chain.Name)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The database is often the last dependency to come up in a fresh
	// deployment, so the connect is retried before giving up.
	var db *gorm.DB
	err = retry.Constant(func() error {
		var connErr error
		db, connErr = infra.NewDBConnection(cfg.DB.URL, cfg.Environment)
		return connErr
	}, retry.DefaultInterval, retry.DefaultMaxAttempts)
	if err != nil {
		logger.Fatal("Connect database failed", "err", err)
	}

	if err := db.AutoMigrate(
		&model.Profile{},
		&model.Campaign{},
		&model.TransactionRecord{},
	); err != nil {
		logger.Fatal("Migrate schema failed", "err", err)
	}

	kv, err := kvstore.NewFromConfig(cfg.KVStore)
	if err != nil {
		logger.Fatal("Create KV store failed", "err", err)
	}

	seen := seencache.New(seencache.Config{
		RecordRepo: repository.NewRepository[model.TransactionRecord](db),
	})
	if err := seen.WarmLoad(ctx); err != nil {
		logger.Fatal("Warm seen cache failed", "err", err)
	}

	nc, err := infra.GetNATSConnection(cfg.NATS.URL)
	if err != nil {
		logger.Fatal("Connect NATS failed", "err", err)
	}
	queueManager := infra.NewNATsMessageQueueManager(
		infra.PayoutEventStream,
		[]string{cfg.NATS.SubjectPrefix, cfg.NATS.SubjectPrefix + ".>"},
		nc,
	)
	emitter := events.NewEmitter(
		queueManager.NewMessageQueue("payout_emitter"),
		cfg.NATS.SubjectPrefix,
	)

	var redisClient infra.RedisClient
	if cfg.Redis.URL != "" {
		redisClient, err = infra.NewRedisClient(cfg.Redis.URL, cfg.Redis.Password)
		if err != nil {
			logger.Fatal("Connect redis failed", "err", err)
		}
	}

	manager, err := poller.CreateManagerWithPollers(ctx, &cfg, kv, db, seen, emitter, redisClient)
	if err != nil {
		logger.Fatal("Create poller manager failed", "err", err)
	}

	httpServer := startHTTPServer(cfg.Server.ListenAddr, version, manager)

	manager.Start()
	logger.Info("Engine is running... Press Ctrl+C to stop")

	waitForShutdown(cfg.Server.MaxUptime)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "err", err)
	}

	cancel()
	manager.Stop()
	nc.Close()
	logger.Info("Engine stopped")
}

func runEventsPrinter(natsURL, subject string) {
	logger.Init(&logger.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.RFC3339,
	})

	nc, err := nats.Connect(natsURL)
	if err != nil {
		logger.Fatal("NATS connect failed", "err", err)
	}
	defer nc.Close()

	logger.Info("Subscribed to", "subject", subject)

	_, err = nc.Subscribe(subject, func(msg *nats.Msg) {
		logger.Info("Payout event", "subject", msg.Subject, "data", string(msg.Data))
	})
	if err != nil {
		logger.Fatal("NATS subscribe failed", "err", err)
	}

	select {} // Block forever
}

// waitForShutdown blocks until a signal arrives or maxUptime elapses.
// maxUptime zero disables the self-exit timer.
func waitForShutdown(maxUptime time.Duration) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	if maxUptime <= 0 {
		<-stop
		return
	}

	select {
	case <-stop:
	case <-time.After(maxUptime):
		logger.Info("Max uptime reached, restarting", "max_uptime", maxUptime)
	}
}
