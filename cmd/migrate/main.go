// Command migrate applies the database migrations.
//
//	migrate [up|up-to VERSION|down|status|version]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/emergent-company/jobmanager/internal/config"
	"github.com/emergent-company/jobmanager/internal/database"
	"github.com/emergent-company/jobmanager/internal/migrate"
	"github.com/emergent-company/jobmanager/pkg/logger"
)

const timeout = 5 * time.Minute

func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: migrate [up|up-to VERSION|down|status|version]")
	}
	flag.Parse()

	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "up"
	}

	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	var m *migrate.Migrator
	var log *zap.Logger
	app := fx.New(
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.WithOptions(zap.IncreaseLevel(zap.WarnLevel))}
		}),
		logger.Module,
		config.Module,
		database.Module,
		migrate.Module,
		fx.Populate(&m, &log),
	)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		os.Exit(1)
	}
	err := run(ctx, m, cmd, flag.Arg(1))
	_ = app.Stop(ctx)
	_ = log.Sync()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, m *migrate.Migrator, cmd, arg string) error {
	switch cmd {
	case "up":
		return m.Up(ctx)
	case "up-to":
		v, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("up-to needs a numeric version, got %q", arg)
		}
		return m.UpTo(ctx, v)
	case "down":
		return m.Down(ctx)
	case "status":
		return m.Status(ctx)
	case "version":
		v, err := m.Version(ctx)
		if err != nil {
			return err
		}
		fmt.Println(v)
		return nil
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}
