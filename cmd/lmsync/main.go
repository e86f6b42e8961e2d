package main

import (
	"encoding/json"
	"fmt"
	"os"

	"lmsync/internal/app"
	"lmsync/internal/config"
	"lmsync/internal/packages"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer a.Close().
// operation identifies the CLI command being run (e.g. "FullSync", "DownloadCourse").
func newApp(operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "lmsync",
	Short: "Offline course data and package sync",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init USER_ID",
	Short: "Initialize configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(args[0], defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("User ID:  %s\n", cfg.UserID)
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("User ID:      %s\n", cfg.UserID)
		fmt.Printf("Base Dir:     %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:      %s\n", cfg.LogDir)
		fmt.Printf("API URL:      %s\n", cfg.API.BaseURL)
		fmt.Printf("Database:     %s (%s)\n", cfg.Database.Type, cfg.Database.DataDir)
		fmt.Printf("Packages Dir: %s\n", cfg.Packages.Dir)
		return nil
	},
}

// sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run a full sync cycle",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("FullSync")
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.FullSync(cmd.Context())
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}

		fmt.Printf("Synced: %d  Failed: %d\n", result.Synced.Total(), result.Failed.Total())
		if !result.Success {
			for _, e := range result.Errors {
				fmt.Printf("  error: %s\n", e)
			}
			return fmt.Errorf("sync completed with %d error(s)", len(result.Errors))
		}
		return nil
	},
}

// course command
var courseCmd = &cobra.Command{
	Use:   "course",
	Short: "Manage offline courses",
}

var courseDownloadCmd = &cobra.Command{
	Use:   "download COURSE_ID",
	Short: "Fetch a course and its lessons for offline use",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("DownloadCourse")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DownloadCourse(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("downloading course: %w", err)
		}

		fmt.Printf("Course %s available offline\n", args[0])
		return nil
	},
}

// queue command
var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Manage the deferred mutation queue",
}

var queueAddCmd = &cobra.Command{
	Use:   "add TYPE ENTITY ENTITY_ID [PAYLOAD_JSON]",
	Short: "Queue a mutation for the next sync",
	Args:  cobra.RangeArgs(3, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("QueueMutation")
		if err != nil {
			return err
		}
		defer a.Close()

		var payload json.RawMessage
		if len(args) == 4 {
			payload = json.RawMessage(args[3])
		}

		id, err := a.QueueMutation(args[0], args[1], args[2], payload)
		if err != nil {
			return fmt.Errorf("queueing mutation: %w", err)
		}

		fmt.Printf("Queued entry #%d\n", id)
		return nil
	},
}

var queueStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "View queue status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("QueueStatus")
		if err != nil {
			return err
		}
		defer a.Close()

		status, err := a.QueueStatus()
		if err != nil {
			return err
		}

		fmt.Printf("Pending: %d\n", len(status.Pending))
		for _, e := range status.Pending {
			fmt.Printf("  #%d  %-6s  %s/%s\n", e.ID, e.Type, e.Entity, e.EntityID)
		}
		fmt.Printf("Failed:  %d\n", len(status.Failed))
		for _, e := range status.Failed {
			fmt.Printf("  #%d  %-6s  %s/%s  attempts:%d  %s\n",
				e.ID, e.Type, e.Entity, e.EntityID, e.Attempts, e.Error)
		}
		return nil
	},
}

var queueRetryCmd = &cobra.Command{
	Use:   "retry ENTRY_ID",
	Short: "Return a failed entry to pending",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var id int64
		if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
			return fmt.Errorf("invalid entry id %q", args[0])
		}

		a, err := newApp("RequeueEntry")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.RequeueEntry(id); err != nil {
			return fmt.Errorf("requeueing entry: %w", err)
		}

		fmt.Printf("Entry #%d returned to pending\n", id)
		return nil
	},
}

var queueClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove completed queue entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ClearSyncQueue")
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.ClearQueue()
		if err != nil {
			return fmt.Errorf("clearing queue: %w", err)
		}

		fmt.Printf("Removed %d completed entrie(s)\n", n)
		return nil
	},
}

// pkg command
var pkgCmd = &cobra.Command{
	Use:   "pkg",
	Short: "Manage downloaded package files",
}

var pkgDownloadCmd = &cobra.Command{
	Use:   "download PACKAGE_ID URL",
	Short: "Download a package binary",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("DownloadPackage")
		if err != nil {
			return err
		}
		defer a.Close()

		onProgress := packages.ProgressFunc(func(pct float64) {
			fmt.Printf("\r%3.0f%%", pct)
		})

		result, err := a.DownloadPackage(cmd.Context(), args[0], args[1], onProgress)
		fmt.Println()
		if err != nil {
			return fmt.Errorf("downloading package: %w", err)
		}
		if !result.Success {
			return fmt.Errorf("download failed: %s", result.Error)
		}

		fmt.Printf("Downloaded %s (%d bytes)\n", result.PackageID, result.Size)
		return nil
	},
}

var pkgDeleteCmd = &cobra.Command{
	Use:   "delete PACKAGE_ID",
	Short: "Delete a downloaded package",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("DeletePackage")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DeletePackage(args[0]); err != nil {
			return fmt.Errorf("deleting package: %w", err)
		}

		fmt.Printf("Deleted package %s\n", args[0])
		return nil
	},
}

var pkgListCmd = &cobra.Command{
	Use:   "list",
	Short: "List downloaded packages",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListPackages")
		if err != nil {
			return err
		}
		defer a.Close()

		infos, err := a.ListPackages()
		if err != nil {
			return err
		}

		if len(infos) == 0 {
			fmt.Println("No packages downloaded.")
			return nil
		}

		for _, info := range infos {
			fmt.Printf("%-40s  %d\n", info.ID, info.Size)
		}
		return nil
	},
}

var pkgSizeCmd = &cobra.Command{
	Use:   "size",
	Short: "Show total size of downloaded packages",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("PackagesSize")
		if err != nil {
			return err
		}
		defer a.Close()

		size, err := a.PackagesSize()
		if err != nil {
			return err
		}

		fmt.Printf("%d bytes\n", size)
		return nil
	},
}

var pkgClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all downloaded packages",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ClearPackages")
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.ClearPackages()
		if err != nil {
			return err
		}

		fmt.Printf("Deleted %d package(s)\n", n)
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the local database",
}

var dbSizeCmd = &cobra.Command{
	Use:   "size",
	Short: "Show per-table row counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("GetSize")
		if err != nil {
			return err
		}
		defer a.Close()

		counts, err := a.DBSize()
		if err != nil {
			return err
		}

		for _, table := range []string{"courses", "lessons", "enrollments", "progress", "packages", "sync_queue", "users"} {
			fmt.Printf("%-12s %d\n", table+":", counts.Counts[table])
		}
		fmt.Printf("%-12s %d\n", "total:", counts.Total)
		return nil
	},
}

var dbResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Wipe all local data",
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return fmt.Errorf("refusing to wipe without --yes")
		}

		a, err := newApp("ClearAll")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ResetDB(); err != nil {
			return fmt.Errorf("resetting database: %w", err)
		}

		fmt.Println("Local data cleared.")
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// course subcommands
	courseCmd.AddCommand(courseDownloadCmd)

	// queue subcommands
	queueCmd.AddCommand(queueAddCmd)
	queueCmd.AddCommand(queueStatusCmd)
	queueCmd.AddCommand(queueRetryCmd)
	queueCmd.AddCommand(queueClearCmd)

	// pkg subcommands
	pkgCmd.AddCommand(pkgDownloadCmd)
	pkgCmd.AddCommand(pkgDeleteCmd)
	pkgCmd.AddCommand(pkgListCmd)
	pkgCmd.AddCommand(pkgSizeCmd)
	pkgCmd.AddCommand(pkgClearCmd)

	// db subcommands
	dbCmd.AddCommand(dbSizeCmd)
	dbCmd.AddCommand(dbResetCmd)
	dbResetCmd.Flags().BoolP("yes", "y", false, "Confirm wiping local data")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(courseCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(pkgCmd)
	rootCmd.AddCommand(dbCmd)
}
