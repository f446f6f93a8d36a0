package main

import (
	"context"
	"database/sql"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"go.opencensus.io/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
	"gopkg.in/reform.v1"
	"gopkg.in/reform.v1/dialects/postgresql"

	"github.com/gebv/checkout"
	"github.com/gebv/checkout/backend"
	"github.com/gebv/checkout/config"
	"github.com/gebv/checkout/engine/worker"
	"github.com/gebv/checkout/httputils"
	"github.com/gebv/checkout/provider"
	"github.com/gebv/checkout/provider/gateway"
	"github.com/gebv/checkout/provider/invoicing"
	"github.com/gebv/checkout/provider/stripe"
	"github.com/gebv/checkout/session"
	"github.com/gebv/checkout/store"
)

var (
	VERSION     = "dev"
	configF     = flag.String("config", "", "Path to the YAML config file.")
	envFileF    = flag.String("env-file", ".env", "Path to the .env file, skipped when missing.")
	productionF = flag.Bool("production", false, "JSON logs.")
	migrateF    = flag.Bool("migrate", true, "Create the database schema when missing.")
)

func main() {
	defaultLogger("INFO")
	flag.Parse()

	if err := godotenv.Load(*envFileF); err != nil && !os.IsNotExist(err) {
		zap.L().Warn("Failed load env file.", zap.String("path", *envFileF), zap.Error(err))
	}
	cfg, err := config.Load(*configF)
	if err != nil {
		zap.L().Panic("Failed load config.", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var syncLogger func() error
	if *productionF {
		syncLogger = productionLogger(cfg.LogLevel)
	} else {
		syncLogger = developLogger(cfg.LogLevel)
	}
	defer syncLogger()
	zap.L().Info("Starting...", zap.String("version", VERSION))
	defer func() { zap.L().Info("Done.") }()
	handleTerm(cancel)

	trace.ApplyConfig(trace.Config{DefaultSampler: trace.ProbabilitySampler(0.1)})

	sqlDB := setupPostgres(cfg.Postgres.Conn, cfg.Postgres.MaxLifetime, cfg.Postgres.MaxOpen, cfg.Postgres.MaxIdle)
	defer sqlDB.Close()
	db := reform.NewDB(sqlDB, postgresql.Dialect, reform.NewPrintfLogger(zap.L().Sugar().Debugf))
	if _, err := db.Exec("SELECT version();"); err != nil {
		zap.L().Panic("Failed to check version to PostgreSQL.", zap.Error(err))
	}
	if *migrateF {
		if err := store.EnsureSchema(db); err != nil {
			zap.L().Panic("Failed to create schema.", zap.Error(err))
		}
	}

	nc, err := nats.Connect(cfg.NATS.URL, nats.Name("checkout-core"))
	if err != nil {
		zap.L().Panic("Failed to connect to NATS.", zap.Error(err))
	}
	ec, err := nats.NewEncodedConn(nc, nats.JSON_ENCODER)
	if err != nil {
		zap.L().Panic("Failed to create NATS encoded connection.", zap.Error(err))
	}
	defer ec.Close()
	zap.L().Info("NATS - Connected!")

	unsynced := store.NewPostgres(db)
	ops := &provider.Store{DB: db}
	publisher := worker.NewPublisher(ec)
	backendClient := backend.NewClient(cfg.BackendClient())
	syncer := worker.NewSyncer(backendClient, unsynced)

	sub, err := worker.SubToNATS(ec, syncer, cfg.Checkout.SyncTimeout)
	if err != nil {
		zap.L().Panic("Failed subscribe to sync requests.", zap.Error(err))
	}
	defer sub.Unsubscribe()

	var gw *gateway.Provider
	if cfg.Gateway.URL != "" {
		gw = gateway.NewProvider(cfg.GatewayProvider(), ops, publisher.TerminalStatus)
		zap.L().Info("Gateway terminal - configured!")
	}
	var st *stripe.Provider
	if cfg.Stripe.Key != "" {
		st = stripe.NewProvider(cfg.StripeProvider(), ops, publisher.TerminalStatus, nil)
		zap.L().Info("Stripe terminal - configured!")
	}
	var invoicer checkout.Invoicer
	if cfg.Invoicing.URL != "" {
		invoicer = invoicing.NewProvider(cfg.InvoicingProvider(), invoicing.DirSink(cfg.Invoicing.Dir))
	}

	terminals := make(map[provider.Provider]checkout.PaymentTerminal)
	if gw != nil {
		terminals[provider.GATEWAY] = gw
	}
	if st != nil {
		terminals[provider.STRIPE] = st
	}
	methods, err := cfg.Methods(terminals)
	if err != nil {
		zap.L().Panic("Failed build payment methods.", zap.Error(err))
	}
	sessions := session.NewManager(ctx, session.Config{
		Currency: cfg.Currency,
		Rounding: cfg.Rounding(),
		Finalize: cfg.Finalize(),
	}, session.Deps{
		Methods:  methods,
		Backend:  backendClient,
		Invoicer: invoicer,
		Store:    unsynced,
		Syncer:   publisher,
		Notifier: publisher,
	})
	defer func() {
		// payments still running on a terminal go to retry
		cancel()
		sessions.Wait()
	}()

	termSub, err := worker.SubTerminalStatus(ec, sessions.ApplyTerminalStatus, cfg.Checkout.SyncTimeout)
	if err != nil {
		zap.L().Panic("Failed subscribe to terminal statuses.", zap.Error(err))
	}
	defer termSub.Unsubscribe()

	e := newEcho(&api{
		store:    unsynced,
		syncer:   syncer,
		invoicer: invoicer,
		sessions: sessions,
		l:        zap.L().Named("api"),
	}, gw, st)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httputils.Serve(gctx, cfg.Listen.Debug, httputils.RunDebugMux())
	})
	g.Go(func() error {
		return serveEcho(gctx, e, cfg.Listen.HTTP)
	})
	g.Go(func() error {
		// orders queued while the backend was unreachable
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				publisher.SyncUnsynced(gctx)
			}
		}
	})

	if err := g.Wait(); err != nil {
		zap.L().Error("Stopped with error.", zap.Error(err))
	}
}

func serveEcho(ctx context.Context, e *echo.Echo, address string) error {
	l := zap.L().Named("http")
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			l.Error("Shutdown error.", zap.Error(err))
		}
	}()
	l.Info("Listening...", zap.String("address", address))
	if err := e.Start(address); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Configure configure zap logger.
//
// Available values of level:
// - DEBUG
// - INFO
// - WARN
// - ERROR
// - DPANIC
// - PANIC
// - FATAL
func defaultLogger(levelSet string) {
	level := zapcore.InfoLevel
	if err := level.Set(levelSet); err != nil {
		panic(err)
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level.SetLevel(level)
	l, err := zc.Build(zap.AddStacktrace(zap.ErrorLevel))
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(l)
	zap.RedirectStdLog(l.Named("stdlog"))
}

func parseLevel(levelSet string) zapcore.Level {
	level := zapcore.InfoLevel
	if err := level.Set(levelSet); err != nil {
		zap.L().Warn("Unknown log level, INFO is used.", zap.String("level", levelSet))
		return zapcore.InfoLevel
	}
	return level
}

func developLogger(levelSet string) func() error {
	zap.L().Sync()

	zc := zap.NewDevelopmentConfig()
	zc.Development = true
	zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	zc.Level.SetLevel(parseLevel(levelSet))

	l, err := zc.Build(
		zap.AddStacktrace(zap.ErrorLevel),
	)
	if err != nil {
		panic(err)
	}

	zap.ReplaceGlobals(l)
	zap.RedirectStdLog(l.Named("stdlog"))

	return l.Sync
}

func productionLogger(levelSet string) func() error {
	zap.L().Sync()

	zc := zap.NewProductionConfig()
	zc.Development = false
	zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	zc.Level.SetLevel(parseLevel(levelSet))

	l, err := zc.Build(
		zap.AddStacktrace(zap.ErrorLevel),
	)
	if err != nil {
		panic(err)
	}

	zap.ReplaceGlobals(l)
	zap.RedirectStdLog(l.Named("stdlog"))

	return l.Sync
}

func handleTerm(cancel context.CancelFunc) {
	// handle termination signals: first one gracefully, force exit on the second one
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, unix.SIGTERM, unix.SIGINT)
	go func() {
		s := <-signals
		zap.L().Warn("Shutting down.", zap.String("signal", unix.SignalName(s.(unix.Signal))))
		cancel()

		s = <-signals
		zap.L().Panic("Exiting!", zap.String("signal", unix.SignalName(s.(unix.Signal))))
	}()
}

func setupPostgres(conn string, maxLifetime time.Duration, maxOpen, maxIdle int) *sql.DB {
	sqlDB, err := sql.Open("postgres", conn)
	if err != nil {
		zap.L().Panic("Failed to connect to PostgreSQL.", zap.Error(err))
	}
	sqlDB.SetConnMaxLifetime(maxLifetime)
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	if err = sqlDB.Ping(); err != nil {
		zap.L().Panic("Failed to connect ping PostgreSQL.", zap.Error(err))
	}
	zap.L().Info("Postgres - Connected!")

	return sqlDB
}
