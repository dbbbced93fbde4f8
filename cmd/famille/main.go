package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/famille/internal/config"
	"github.com/dukerupert/famille/internal/database"
	"github.com/dukerupert/famille/internal/ledger"
	"github.com/dukerupert/famille/internal/logging"
	"github.com/dukerupert/famille/internal/push"
	"github.com/dukerupert/famille/internal/server"
)

const sessionSweepInterval = time.Hour

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "famille"
	app.Usage = "Household points ledger"
	app.Action = cli.ShowAppHelp
	app.Flags = []cli.Flag{
		&cli.StringFlag{Name: "db", Usage: "SQLite database path (overrides FAMILLE_DB_PATH)"},
		&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
		&cli.StringFlag{Name: "log-format", Usage: "text or json"},
	}
	app.Commands = []*cli.Command{
		{
			Name:     "serve",
			Usage:    "Start the HTTP server",
			Category: "Server",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "port", Usage: "listen port (overrides FAMILLE_PORT)"},
			},
			Action: serve,
		},
		{
			Name:        "migrate",
			Usage:       "Apply database migrations",
			Category:    "Database",
			Description: `Brings the schema up to date and prints the resulting version.`,
			Action:      migrate,
		},
		{
			Name:     "reset",
			Usage:    "Archive and clear every member's points",
			Category: "Database",
			Flags: []cli.Flag{
				&cli.Int64Flag{Name: "actor", Usage: "id of the parent or admin performing the reset", Required: true},
			},
			Action: reset,
		},
		{
			Name:     "vapid-keys",
			Usage:    "Generate a VAPID key pair for web push",
			Category: "Push",
			Action:   vapidKeys,
		},
	}
	return app
}

// loadConfig reads the environment, then applies global flag overrides.
func loadConfig(c *cli.Context) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, nil, fmt.Errorf("load config: %w", err)
	}
	if v := c.String("db"); v != "" {
		cfg.DBPath = v
	}
	if v := c.String("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v := c.String("log-format"); v != "" {
		cfg.LogFormat = v
	}
	return cfg, logging.Setup(cfg.LogLevel, cfg.LogFormat), nil
}

func serve(c *cli.Context) error {
	cfg, logger, err := loadConfig(c)
	if err != nil {
		return err
	}
	if v := c.String("port"); v != "" {
		cfg.Port = v
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	srv, err := server.New(db, cfg, logger)
	if err != nil {
		return err
	}
	defer srv.Close()

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting", "addr", httpServer.Addr, "db", cfg.DBPath)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(sessionSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				n, err := srv.SessionStore().DeleteExpired()
				if err != nil {
					logger.Error("failed to delete expired sessions", "error", err)
					continue
				}
				if n > 0 {
					logger.Debug("expired sessions removed", "count", n)
				}
			}
		}
	})

	g.Go(func() error {
		return srv.RateLimiter().Run(ctx, 5*time.Minute)
	})

	if sched := srv.PushScheduler(); sched != nil {
		sched.Start(ctx)
		g.Go(func() error {
			<-ctx.Done()
			sched.Stop()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

func migrate(c *cli.Context) error {
	cfg, logger, err := loadConfig(c)
	if err != nil {
		return err
	}
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	v, err := database.Version(db)
	if err != nil {
		return err
	}
	logger.Info("database migrated", "db", cfg.DBPath, "version", v)
	fmt.Fprintln(c.App.Writer, v)
	return nil
}

func reset(c *cli.Context) error {
	cfg, logger, err := loadConfig(c)
	if err != nil {
		return err
	}
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	srv, err := server.New(db, cfg, logger)
	if err != nil {
		return err
	}
	defer srv.Close()

	id := c.Int64("actor")
	actor, err := srv.Member(id)
	if err != nil {
		return err
	}
	if actor == nil {
		return fmt.Errorf("member %d not found", id)
	}

	report, err := srv.Engine().Reset(c.Context, ledger.Actor{MemberID: actor.ID, Role: actor.Role})
	if report != nil {
		fmt.Fprintf(c.App.Writer, "reset %d members, removed %d entries\n", len(report.Members), report.EntriesRemoved)
		if report.Archive != nil {
			fmt.Fprintf(c.App.Writer, "archived to %s\n", report.Archive.ObjectKey)
		}
	}
	return err
}

func vapidKeys(c *cli.Context) error {
	pub, priv, err := push.GenerateVAPIDKeys()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "FAMILLE_VAPID_PUBLIC_KEY=%s\nFAMILLE_VAPID_PRIVATE_KEY=%s\n", pub, priv)
	return nil
}
