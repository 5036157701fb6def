package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	coredatabase "github.com/m3rciful/gatebot/core/database"
	"github.com/m3rciful/gatebot/core/logger"
	"github.com/m3rciful/gatebot/internal/membership"
	"github.com/m3rciful/gatebot/internal/records"
)

func membersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "members",
		Short: "Print the member list from the records store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				_ = store.Close()
				_ = logger.Shutdown()
			}()

			var refs []records.MemberRef
			if err := store.View(ctx, func(doc *records.Document) error {
				refs = records.SortedMembers(doc)
				return nil
			}); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), membership.FormatMemberList(refs))
			return nil
		},
	}
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations for the postgres backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db := cfg.PostgresConfig()
			if db == nil {
				return errors.New("migrate: storage backend is not postgres")
			}
			if err := logger.InitLogger(cfg.CoreConfig()); err != nil {
				return err
			}
			defer func() { _ = logger.Shutdown() }()
			return coredatabase.RunMigrations(cmd.Context(), *db)
		},
	}
}
