package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/photoatlas/backend/internal/db"
	"github.com/photoatlas/backend/internal/store"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Setup database tables",
	Long:  "Creates database tables and optionally seeds an initial allowed email for development/testing",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		manager, err := db.NewManager()
		if err != nil {
			return err
		}
		defer manager.Close()

		pool, err := manager.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}

		// Run migrations
		fmt.Println("Running migrations...")
		migrationSQL := `
			-- Synced image records with inline payload
			CREATE TABLE IF NOT EXISTS images (
			    id UUID PRIMARY KEY,
			    file_id TEXT NOT NULL UNIQUE,
			    name TEXT NOT NULL DEFAULT '',
			    mime_type TEXT NOT NULL DEFAULT '',
			    image_data BYTEA NOT NULL,
			    latitude DOUBLE PRECISION,
			    longitude DOUBLE PRECISION,
			    taken_at TIMESTAMP WITH TIME ZONE NOT NULL,
			    uploaded_by TEXT NOT NULL DEFAULT '',
			    district TEXT NOT NULL DEFAULT '',
			    tehsil TEXT NOT NULL DEFAULT '',
			    village TEXT NOT NULL DEFAULT '',
			    country TEXT NOT NULL DEFAULT '',
			    last_checked_at TIMESTAMP WITH TIME ZONE,
			    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
			);

			CREATE INDEX IF NOT EXISTS idx_images_uploaded_by ON images(uploaded_by);
			CREATE INDEX IF NOT EXISTS idx_images_taken_at ON images(taken_at);
			CREATE INDEX IF NOT EXISTS idx_images_district ON images(district);

			-- Allow-list controlling who may trigger a sync
			CREATE TABLE IF NOT EXISTS allowed_emails (
			    id UUID PRIMARY KEY,
			    email TEXT NOT NULL UNIQUE,
			    added_by TEXT NOT NULL DEFAULT 'System',
			    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
			);

			-- Local dashboard accounts
			CREATE TABLE IF NOT EXISTS users (
			    id UUID PRIMARY KEY,
			    name TEXT NOT NULL UNIQUE,
			    email TEXT NOT NULL UNIQUE,
			    password TEXT NOT NULL,
			    role TEXT NOT NULL DEFAULT 'user',
			    status_access TEXT NOT NULL DEFAULT 'pending',
			    permissions TEXT[] NOT NULL DEFAULT '{}',
			    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
			);
		`

		if _, err := pool.Exec(ctx, migrationSQL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		// Seed allow-list entry
		seedEmail, _ := cmd.Flags().GetString("seed-email")
		if seedEmail != "" {
			fmt.Printf("Seeding allowed email %s...\n", seedEmail)
			allowList := store.NewAllowListStore(manager)
			_, err := allowList.Add(ctx, strings.ToLower(seedEmail), store.SystemAddedBy)
			if err != nil && !errors.Is(err, store.ErrDuplicate) {
				return fmt.Errorf("failed to seed allowed email: %w", err)
			}
		}

		fmt.Println("✓ Database setup complete.")
		return nil
	},
}

func init() {
	setupCmd.Flags().String("seed-email", "", "Allow-list email to seed after migrations")
	rootCmd.AddCommand(setupCmd)
}
