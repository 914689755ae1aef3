package cmd

import (
	"fmt"
	"os"

	"github.com/DuyAnh662/Fileshare/internal/config"
	"github.com/DuyAnh662/Fileshare/internal/db"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func MigrateCmd() *cobra.Command {
	var driver, dsn string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
			if driver == "" {
				driver = envOr("DB_DRIVER", config.DefaultDBDriver)
			}
			if dsn == "" {
				dsn = envOr("DB_CONNECTION", config.DefaultDBConnection)
			}
		},
	}
	cmd.PersistentFlags().StringVar(&driver, "driver", "", "Database driver: sqlite or pgx (default $DB_DRIVER)")
	cmd.PersistentFlags().StringVar(&dsn, "dsn", "", "Connection string (default $DB_CONNECTION)")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(driver, dsn, func(database *sqlx.DB) error {
				return db.RunMigrations(cmd.Context(), database.DB, driver)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(driver, dsn, func(database *sqlx.DB) error {
				return db.MigrateDown(cmd.Context(), database.DB, driver)
			})
		},
	})

	return cmd
}

func withDB(driver, dsn string, fn func(*sqlx.DB) error) error {
	database, err := db.Init(driver, dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	return fn(database)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
