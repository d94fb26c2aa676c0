package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/alan/citascrit-cli/internal/app"
	"github.com/alan/citascrit-cli/internal/cli"
	"github.com/alan/citascrit-cli/internal/config"
	"github.com/alan/citascrit-cli/internal/documents"
	apperrors "github.com/alan/citascrit-cli/internal/errors"
	"github.com/alan/citascrit-cli/internal/metrics"
	"github.com/alan/citascrit-cli/internal/reminders"
	"github.com/alan/citascrit-cli/internal/store"
)

var (
	configPath = flag.String("config", "", "Path to config file")
	dataDir    = flag.String("data", "", "Path to data directory")
	version    = "dev"
)

func main() {
	flag.Usage = func() { cli.PrintExtendedHelp(os.Stderr) }
	flag.Parse()
	args := flag.Args()

	if len(args) == 0 {
		cli.PrintExtendedHelp(os.Stdout)
		return
	}

	switch args[0] {
	case "help", "--help", "-h":
		cli.PrintExtendedHelp(os.Stdout)
		return
	case "version", "--version", "-v":
		fmt.Printf("citascrit version %s\n", version)
		return
	}

	if err := config.LoadEnvFiles(); err != nil {
		log.Printf("Warning: failed to load .env files: %v", err)
	}

	cfg, err := config.Load(*configPath, *dataDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cli.Version = version
	con := cli.StdConsole()

	switch args[0] {
	case "config":
		exitOnError(cli.HandleConfigCommand(cfg, con, args[1:]))
		return
	case "token":
		exitOnError(cli.HandleTokenCommand(cfg, con, args[1:]))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.New(cfg, logger)
	if errors.Is(err, apperrors.ErrStoreLocked) && args[0] != "daemon" {
		exitOnError(cli.HandleStoreLocked(cfg, con, args, err))
		return
	}
	if err != nil {
		logger.Fatal("Failed to initialize store", zap.Error(err))
	}
	defer st.Close()

	m := metrics.Default()
	extractor := documents.NewFileExtractor(cfg.Documents.PdftotextPath)

	var cmdErr error
	switch args[0] {
	case "daemon":
		logger.Info("Starting citascrit daemon", zap.String("version", version))
		if !extractor.Available() {
			logger.Warn("pdftotext not found, PDF imports will fail", zap.String("path", cfg.Documents.PdftotextPath))
		}
		sched := reminders.NewTimerScheduler(reminders.NewLogNotifier(logger, os.Stdout), logger, m)
		application := app.New(cfg, st, extractor, sched, m, logger, version)
		d := &cli.Daemon{App: application, Scheduler: sched, Metrics: m, Logger: logger}
		cmdErr = d.Run(ctx)
	default:
		application := app.New(cfg, st, extractor, nil, m, logger, version)
		cmdErr = dispatch(ctx, application, con, args)
	}

	if cmdErr != nil {
		st.Close()
		exitOnError(cmdErr)
	}
}

func dispatch(ctx context.Context, application *app.App, con *cli.Console, args []string) error {
	switch args[0] {
	case "import":
		return cli.HandleImportCommand(ctx, application, con, args[1:])
	case "list", "ls":
		return cli.HandleListCommand(ctx, application, con, args[1:])
	case "status":
		return cli.HandleStatusCommand(ctx, application, con)
	case "cancel":
		return cli.HandleCancelCommand(ctx, application, con, args[1:])
	case "alarms":
		return cli.HandleAlarmsCommand(ctx, application, con, args[1:])
	case "profile":
		return cli.HandleProfileCommand(ctx, application, con, args[1:])
	default:
		cli.PrintExtendedHelp(os.Stderr)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// newLogger builds the zap logger. Development mode is the default, as
// for an interactive CLI; production mode logs JSON.
func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func exitOnError(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "❌ Error: %v\n", err)
	os.Exit(1)
}
