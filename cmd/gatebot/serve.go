package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/m3rciful/gatebot/core/bootstrap"
	corecmd "github.com/m3rciful/gatebot/core/cmd"
	"github.com/m3rciful/gatebot/internal/bot"
	"github.com/m3rciful/gatebot/internal/config"
	"github.com/m3rciful/gatebot/internal/records"
	"github.com/m3rciful/gatebot/internal/storage"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveRun()
		},
	}
}

func serveRun() error {
	return corecmd.Run(corecmd.Options{
		DefaultConfigPath: configFile,
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return config.Load(path)
		},
		Bootstrap: func(ctx context.Context, carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			cfg, ok := carrier.(*config.Config)
			if !ok {
				return nil, fmt.Errorf("unexpected config type %T", carrier)
			}
			store, err := openStore(ctx, cfg)
			if err != nil {
				return nil, err
			}
			app, err := bot.New(cfg, store)
			if err != nil {
				_ = store.Close()
				return nil, err
			}
			return app, nil
		},
	})
}

// loadConfig resolves the config path the same way serve does.
func loadConfig() (*config.Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = configFile
	}
	return config.Load(path)
}

// openStore initializes logging, the optional database and the records store.
func openStore(ctx context.Context, cfg *config.Config) (*records.Store, error) {
	res, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.PostgresConfig(),
	})
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(ctx, cfg.Storage, res.DB)
	if err != nil {
		_ = res.Close()
		return nil, err
	}
	return store, nil
}
