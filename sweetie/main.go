package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"github.com/erikmcclure/sweetiemod/automodmodule"
	bot "github.com/erikmcclure/sweetiemod/sweetiebot"
	_ "github.com/joho/godotenv/autoload"
	"github.com/lmittmann/tint"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	cli "github.com/urfave/cli/v2"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	app := cli.App{
		Name:    "sweetie",
		Usage:   "discord moderation bot that removes spam, shouting, unwanted links and banned words",
		Version: versioninfo.Short(),
		Action:  runBot,
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:     "token",
			Usage:    "discord bot token",
			Required: true,
			EnvVars:  []string{"DISCORD_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "owner",
			Usage:   "user ID of the bot owner, who can run any command",
			EnvVars: []string{"SWEETIE_OWNER"},
		},
		&cli.StringFlag{
			Name:    "config-dir",
			Usage:   "directory holding one JSON config file per guild",
			Value:   ".",
			EnvVars: []string{"SWEETIE_CONFIG_DIR"},
		},
		&cli.StringFlag{
			Name:    "db-driver",
			Usage:   "audit log database driver: mysql or sqlite3",
			Value:   "sqlite3",
			EnvVars: []string{"SWEETIE_DB_DRIVER"},
		},
		&cli.StringFlag{
			Name:    "db-dsn",
			Usage:   "audit log database DSN. The audit log is disabled if empty",
			EnvVars: []string{"SWEETIE_DB_DSN"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis URL for shared spam rate state. Rate state is kept in memory if empty",
			EnvVars: []string{"SWEETIE_REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "automod-defaults",
			Usage:   "YAML file with the automod settings new guilds start from",
			EnvVars: []string{"SWEETIE_AUTOMOD_DEFAULTS"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3989",
			EnvVars: []string{"SWEETIE_METRICS_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "debug, info, warn or error",
			Value:   "info",
			EnvVars: []string{"SWEETIE_LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "text or json",
			Value:   "text",
			EnvVars: []string{"SWEETIE_LOG_FORMAT"},
		},
	}

	return app.Run(args)
}

func runBot(cctx *cli.Context) error {
	logger, err := bot.NewLogger(os.Stderr, cctx.String("log-format"), cctx.String("log-level"))
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	defaults := bot.DefaultAutoModConfig()
	if path := cctx.String("automod-defaults"); path != "" {
		if defaults, err = bot.LoadAutoModDefaults(path); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var db *bot.BotDB
	if dsn := cctx.String("db-dsn"); dsn != "" {
		if db, err = bot.DBLoad(logger, cctx.String("db-driver"), dsn); err != nil {
			db.Close()
			return fmt.Errorf("opening audit log database: %w", err)
		}
	}

	var store automodmodule.RateStore
	if url := cctx.String("redis-url"); url != "" {
		rs, err := automodmodule.NewRedisRateStore(ctx, url)
		if err != nil {
			db.Close()
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rs.Close()
		store = rs
	} else {
		// Entries must outlive the longest allowed spam window
		store = automodmodule.NewMemRateStore(100000, 2*time.Hour)
	}

	var automod *automodmodule.AutoModModule
	sb, err := bot.New(bot.Options{
		Token:           cctx.String("token"),
		Owner:           bot.DiscordUser(cctx.String("owner")),
		ConfigDir:       cctx.String("config-dir"),
		Version:         versioninfo.Short(),
		Logger:          logger,
		DB:              db,
		AutoModDefaults: &defaults,
		Loader: func(info *bot.GuildInfo) {
			info.RegisterModule(automod)
		},
	})
	if err != nil {
		db.Close()
		return err
	}

	var audit automodmodule.AuditLog
	if db != nil {
		audit = db
	}
	automod = automodmodule.New(store, &automodmodule.DiscordActions{Session: sb.DG, Log: logger}, audit, logger)

	if addr := cctx.String("metrics-listen"); addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info("metrics listener starting", "addr", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("metrics listener failed", tint.Err(err))
			}
		}()
	}

	return sb.Run(ctx)
}
