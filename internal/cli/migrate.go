package cli

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/facemotion/internal/db"
	"github.com/banshee-data/facemotion/internal/facemesh/adapters"
	"github.com/banshee-data/facemotion/internal/facemesh/storage/sqlite"
)

const defaultDBPath = "facemotion.db"

func newMigrateCmd(root *Root) *cobra.Command {
	var dbPath string

	// withDB opens the database without touching its schema; migrations
	// manage it themselves.
	withDB := func(fn func(cmd *cobra.Command, database *db.DB, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			database, err := db.OpenDB(dbPath)
			if err != nil {
				return err
			}
			defer database.Close()
			return fn(cmd, database, args)
		}
	}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the feature store schema",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", defaultDBPath, "path to the SQLite database")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: withDB(func(cmd *cobra.Command, database *db.DB, _ []string) error {
			if err := database.MigrateUp(); err != nil {
				return err
			}
			return printVersion(cmd, database)
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back one migration",
		Args:  cobra.NoArgs,
		RunE: withDB(func(cmd *cobra.Command, database *db.DB, _ []string) error {
			if err := database.MigrateDown(); err != nil {
				return err
			}
			return printVersion(cmd, database)
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the current and latest schema versions",
		Args:  cobra.NoArgs,
		RunE: withDB(func(cmd *cobra.Command, database *db.DB, _ []string) error {
			s, err := database.GetMigrationStatus()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Current version: %d\n", s.Current)
			fmt.Fprintf(out, "Latest available: %d\n", s.Latest)
			fmt.Fprintf(out, "Dirty: %v\n", s.Dirty)
			switch {
			case s.Dirty:
				fmt.Fprintln(out, "A migration failed mid-way. Inspect the database, then run: facemotion migrate force <version>")
			case s.AheadOfLatest:
				fmt.Fprintln(out, "Database is ahead of this build's migrations.")
			case s.PendingCount > 0:
				fmt.Fprintf(out, "%d migration(s) pending. Run: facemotion migrate up\n", s.PendingCount)
			default:
				fmt.Fprintln(out, "Database is up to date.")
			}
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "goto <version>",
		Short: "Migrate up or down to a specific version",
		Args:  cobra.ExactArgs(1),
		RunE: withDB(func(cmd *cobra.Command, database *db.DB, args []string) error {
			v, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid version number: %s", args[0])
			}
			if err := database.MigrateTo(uint(v)); err != nil {
				return err
			}
			return printVersion(cmd, database)
		}),
	})

	var yes bool
	force := &cobra.Command{
		Use:   "force <version>",
		Short: "Force the recorded version (recovery only)",
		Args:  cobra.ExactArgs(1),
		RunE: withDB(func(cmd *cobra.Command, database *db.DB, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version number: %s", args[0])
			}
			if !yes {
				fmt.Fprintf(cmd.OutOrStdout(), "Forcing migration version to %d. Continue? [y/N]: ", v)
				answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if a := strings.TrimSpace(answer); a != "y" && a != "Y" {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
					return nil
				}
			}
			if err := database.MigrateForce(v); err != nil {
				return err
			}
			return printVersion(cmd, database)
		}),
	}
	force.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	cmd.AddCommand(force)

	cmd.AddCommand(&cobra.Command{
		Use:   "baseline <version>",
		Short: "Record a version as applied without running migrations",
		Args:  cobra.ExactArgs(1),
		RunE: withDB(func(cmd *cobra.Command, database *db.DB, args []string) error {
			v, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid version number: %s", args[0])
			}
			if err := database.BaselineAtVersion(uint(v)); err != nil {
				return err
			}
			return printVersion(cmd, database)
		}),
	})

	return cmd
}

func printVersion(cmd *cobra.Command, database *db.DB) error {
	v, dirty, err := database.MigrateVersion()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Current version: %d (dirty: %v)\n", v, dirty)
	return nil
}

func newRunsCmd(root *Root) *cobra.Command {
	var dbPath string

	// openStore refuses databases that are not at the latest schema.
	openStore := func() (*db.DB, *sqlite.FeatureStore, error) {
		database, err := db.OpenDB(dbPath)
		if err != nil {
			return nil, nil, err
		}
		if err := database.CheckMigrations(); err != nil {
			database.Close()
			return nil, nil, err
		}
		return database, sqlite.NewFeatureStore(database.DB), nil
	}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List, export and delete stored feature runs",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", defaultDBPath, "path to the SQLite database")

	var source string
	list := &cobra.Command{
		Use:   "list",
		Short: "List stored runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, store, err := openStore()
			if err != nil {
				return err
			}
			defer database.Close()

			runs, err := store.ListRuns(cmd.Context(), source)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range runs {
				fmt.Fprintf(out, "%s\t%s\t%s\t%s\t%d frames\t%d warnings\t%s\n",
					r.RunID, r.SourceFile, r.Subject, r.Test, r.FrameCount, r.WarningCount,
					time.Unix(0, r.CreatedAt).UTC().Format(time.RFC3339))
			}
			return nil
		},
	}
	list.Flags().StringVar(&source, "source", "", "only runs of this recording file name")
	cmd.AddCommand(list)

	var output string
	export := &cobra.Command{
		Use:   "export <run-id>",
		Short: "Write a stored feature table as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			database, store, err := openStore()
			if err != nil {
				return err
			}
			defer database.Close()

			t, err := store.LoadTable(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if output == "" {
				return adapters.WriteFeatureCSV(cmd.OutOrStdout(), t)
			}
			if err := adapters.WriteFeatureFile(root.fsys, output, t); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			return nil
		},
	}
	export.Flags().StringVarP(&output, "output", "o", "", "output CSV (default stdout)")
	cmd.AddCommand(export)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			database, store, err := openStore()
			if err != nil {
				return err
			}
			defer database.Close()
			return store.DeleteRun(cmd.Context(), args[0])
		},
	})

	return cmd
}
