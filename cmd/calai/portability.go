package calai

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yazinsai/cal-ai/internal/app"
	"github.com/yazinsai/cal-ai/internal/report"
	"github.com/yazinsai/cal-ai/internal/service"
)

var (
	exportFormat string
	exportOut    string
	exportDays   int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export data to JSON or CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		format := strings.ToLower(strings.TrimSpace(exportFormat))
		if format != "json" && format != "csv" {
			return fmt.Errorf("--format must be json or csv")
		}
		return withStore(func(e *env) error {
			snap, err := service.ExportSnapshot(e.st, e.clk, exportDays)
			if err != nil {
				return err
			}
			w, done, err := openOutput(cmd, exportOut)
			if err != nil {
				return err
			}
			defer done()
			if format == "csv" {
				err = service.WriteCSV(w, snap.History, e.clk.Location())
			} else {
				err = service.WriteSnapshotJSON(w, snap)
			}
			if err != nil {
				return err
			}
			if exportOut != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d day(s) to %s\n", len(snap.History), exportOut)
			}
			return nil
		})
	},
}

var (
	importMode   string
	importDryRun bool
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a JSON snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open import file: %w", err)
		}
		defer f.Close()
		snap, err := service.DecodeSnapshot(f)
		if err != nil {
			return err
		}
		opts := service.ImportOptions{Mode: service.ImportMode(strings.ToLower(importMode)), DryRun: importDryRun}
		return withStore(func(e *env) error {
			rep, err := service.ImportSnapshot(e.st, snap, opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if importDryRun {
				fmt.Fprintln(out, "Dry run: no changes written")
			}
			fmt.Fprintf(out, "Days inserted: %d\n", rep.Inserted)
			fmt.Fprintf(out, "Days updated: %d\n", rep.Updated)
			fmt.Fprintf(out, "Days skipped: %d\n", rep.Skipped)
			fmt.Fprintf(out, "Conflicts: %d\n", rep.Conflicts)
			fmt.Fprintf(out, "Entries: %d\n", rep.Entries)
			for _, w := range rep.Warnings {
				fmt.Fprintf(out, "Warning: %s\n", w)
			}
			return nil
		})
	},
}

var (
	reportDays    int
	reportOut     string
	reportEntries bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write a PDF report of recent history",
	RunE: func(cmd *cobra.Command, args []string) error {
		if reportDays <= 0 {
			return fmt.Errorf("--days must be > 0")
		}
		return withStore(func(e *env) error {
			history, err := service.GetHistory(e.st, e.clk, reportDays)
			if err != nil {
				return err
			}
			out := reportOut
			if out == "" {
				out = filepath.Join(filepath.Dir(cfg.DBPath), fmt.Sprintf("calai-report-%s.pdf", e.clk.Now().Format("20060102")))
			}
			if err := app.EnsureDBDir(out); err != nil {
				return err
			}
			h := report.History{
				Title:          fmt.Sprintf("Nutrition History (%d days)", reportDays),
				Days:           history,
				Target:         e.st.Target(),
				Location:       e.clk.Location(),
				GeneratedAt:    e.clk.Now(),
				IncludeEntries: reportEntries,
			}
			if err := report.WriteFile(out, h); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote report to %s\n", out)
			return nil
		})
	},
}

// openOutput returns stdout when path is empty.
func openOutput(cmd *cobra.Command, path string) (io.Writer, func(), error) {
	if path == "" {
		return cmd.OutOrStdout(), func() {}, nil
	}
	if err := app.EnsureDBDir(path); err != nil {
		return nil, nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func init() {
	rootCmd.AddCommand(exportCmd, importCmd, reportCmd)
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "json or csv")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "Output file (default stdout)")
	exportCmd.Flags().IntVar(&exportDays, "days", 0, "Only the last N days (0 = everything)")

	importCmd.Flags().StringVar(&importMode, "mode", string(service.ImportModeReplace), "replace, merge, skip or fail")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Report what would change without writing")

	reportCmd.Flags().IntVar(&reportDays, "days", 30, "Number of days ending today")
	reportCmd.Flags().StringVar(&reportOut, "out", "", "Output PDF path (default next to the database)")
	reportCmd.Flags().BoolVar(&reportEntries, "entries", false, "Include every entry")
}
