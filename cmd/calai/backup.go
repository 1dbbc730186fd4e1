package calai

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/yazinsai/cal-ai/internal/app"
	"github.com/yazinsai/cal-ai/internal/service"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage database backups",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(cmd, args); err != nil {
			return err
		}
		if cfg.Storage.Driver != "sqlite" {
			return fmt.Errorf("backups need the sqlite storage driver (current: %s)", cfg.Storage.Driver)
		}
		return nil
	},
}

var (
	backupOut      string
	backupDir      string
	backupCompress bool
	restoreFile    string
	restoreForce   bool
)

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create database backup",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := backupOut
		if out == "" {
			dir := backupDir
			if dir == "" {
				dir = app.BackupDir(cfg.DBPath)
			}
			out = filepath.Join(dir, service.DefaultBackupName(time.Now()))
		}
		info, err := service.CreateBackup(cfg.DBPath, out, backupCompress)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created backup: %s\n", info.Path)
		fmt.Fprintf(cmd.OutOrStdout(), "Checksum: %s\n", info.Checksum)
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backups",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := backupDir
		if dir == "" {
			dir = app.BackupDir(cfg.DBPath)
		}
		items, err := service.ListBackups(dir)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "FILE\tSIZE\tCREATED\tCHECKSUM")
		for _, it := range items {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%s\t%s\n", it.Path, it.SizeBytes, it.CreatedAt.Format(time.RFC3339), it.Checksum)
		}
		return nil
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore database from backup",
	RunE: func(cmd *cobra.Command, args []string) error {
		if restoreFile == "" {
			return fmt.Errorf("--file is required")
		}
		if err := service.RestoreBackup(restoreFile, cfg.DBPath, restoreForce); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Restored backup from %s\n", restoreFile)
		return nil
	},
}

var doctorFix bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run data integrity checks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(e *env) error {
			report, err := service.RunDoctor(e.st, doctorFix)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Malformed records: %d\n", len(report.MalformedRecords))
			for _, key := range report.MalformedRecords {
				fmt.Fprintf(out, "  %s\n", key)
			}
			fmt.Fprintf(out, "Legacy records: %d\n", report.LegacyRecords)
			fmt.Fprintf(out, "Misfiled entries: %d\n", report.MisfiledEntries)
			fmt.Fprintf(out, "Duplicate entry ids: %d\n", report.DuplicateEntryIDs)
			if doctorFix {
				fmt.Fprintf(out, "Upgraded records: %d\n", report.UpgradedRecords)
				fmt.Fprintf(out, "Deleted records: %d\n", report.DeletedRecords)
				fmt.Fprintf(out, "Moved entries: %d\n", report.MovedEntries)
				fmt.Fprintf(out, "Dropped duplicates: %d\n", report.DroppedDuplicates)
				// Re-check after fixes so exit status reflects final state.
				report, err = service.RunDoctor(e.st, false)
				if err != nil {
					return err
				}
			}
			if !report.Healthy() {
				return fmt.Errorf("doctor found integrity issues")
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(backupCmd, doctorCmd)
	backupCmd.AddCommand(backupCreateCmd, backupListCmd, backupRestoreCmd)

	backupCreateCmd.Flags().StringVar(&backupOut, "out", "", "Backup output file path")
	backupCreateCmd.Flags().StringVar(&backupDir, "dir", "", "Backup directory (used when --out is empty)")
	backupCreateCmd.Flags().BoolVar(&backupCompress, "compress", false, "Write an xz-compressed .db.xz backup")
	backupListCmd.Flags().StringVar(&backupDir, "dir", "", "Backup directory (default: alongside DB under backups/)")
	backupRestoreCmd.Flags().StringVar(&restoreFile, "file", "", "Backup .db or .db.xz file path")
	backupRestoreCmd.Flags().BoolVar(&restoreForce, "force", false, "Overwrite existing DB if present")
}
