package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/example/lughat/internal/bot"
	"github.com/example/lughat/internal/config"
	"github.com/example/lughat/internal/database"
	"github.com/example/lughat/internal/excel"
	"github.com/example/lughat/internal/review"
	"github.com/example/lughat/internal/scheduler"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		slog.Error("lughat stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Подключаемся к базе данных
	if err := database.Connect(cfg.DB.Driver, cfg.DB.DSN); err != nil {
		return err
	}
	defer database.Close()
	slog.Info("database ready", "driver", cfg.DB.Driver)

	policy := cfg.Policy()
	content := database.NewContentRepository(database.DB)
	service := review.NewService(database.DB, content, review.Options{
		Policy:          &policy,
		DefaultTimezone: cfg.Timezone,
	})

	importer := func(ctx context.Context, path string) (string, error) {
		importCfg := excel.DefaultImportConfig()
		importCfg.FilePath = path
		res, err := excel.ImportMissions(ctx, database.DB, importCfg)
		if err != nil {
			return "", err
		}
		report := fmt.Sprintf("✅ Импорт завершен\nОбработано: %d\nСоздано: %d\nОбновлено: %d\nПропущено: %d",
			res.TotalProcessed, res.Created, res.Updated, res.Skipped)
		if len(res.Errors) > 0 {
			report += "\n\nОшибки:\n" + strings.Join(res.Errors, "\n")
		}
		return report, nil
	}

	b, err := bot.New(cfg.Telegram.Token, service, content, importer, &bot.BotConfig{
		ReviewBatch:   cfg.Telegram.Batch,
		AdminUserIDs:  cfg.Telegram.Admins,
		UpdateTimeout: cfg.Telegram.Timeout,
		Debug:         cfg.Telegram.Debug,
	})
	if err != nil {
		return err
	}

	sched := scheduler.New(b, service, cfg.Reminders.Spec)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := b.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			slog.Info("metrics server listening", "addr", cfg.Metrics.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	slog.Info("lughat started")
	return g.Wait()
}
