package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/spf13/cobra"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "List and export attendance records",
	Long:  `List attendance events from the ledger. Use subcommands to export.`,
	RunE:  runAttendanceList,
}

var attendanceExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export the attendance ledger to a file",
	Long: `Export the attendance ledger to another file, converting between CSV
and XLSX when the destination format differs.

Example:
  face-attendance attendance export report.xlsx
  face-attendance attendance export report.csv --format csv`,
	Args: cobra.ExactArgs(1),
	RunE: runAttendanceExport,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)
	attendanceCmd.AddCommand(attendanceExportCmd)

	// List flags
	attendanceCmd.Flags().String("from", "", "Earliest date to include (YYYY-MM-DD)")
	attendanceCmd.Flags().String("to", "", "Latest date to include (YYYY-MM-DD)")

	// Export flags
	attendanceExportCmd.Flags().String("format", "", "Output format: csv or xlsx (defaults to the file extension)")
}

func runAttendanceList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	led, err := openLedger(cfg)
	if err != nil {
		return err
	}

	from := mustGetString(cmd, "from")
	to := mustGetString(cmd, "to")

	events, err := led.EventsFor(context.Background(), from, to)
	if err != nil {
		return fmt.Errorf("failed to read the attendance ledger: %w", err)
	}

	if len(events) == 0 {
		fmt.Println("No attendance events found")
		return nil
	}

	cols := ledgerColumns(cfg)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	headers := []string{"DATE", "TIME", "NAME"}
	for _, c := range cols {
		headers = append(headers, strings.ToUpper(c.Label))
	}
	fmt.Fprintln(w, strings.Join(headers, "\t"))

	for _, e := range events {
		row := []string{e.Date, e.Time, e.DisplayName}
		for _, c := range cols {
			row = append(row, e.Attributes[c.Key])
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	w.Flush()

	fmt.Printf("\nTotal: %d events\n", len(events))
	return nil
}

func runAttendanceExport(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	dest := args[0]

	led, err := openLedger(cfg)
	if err != nil {
		return err
	}

	formatArg := mustGetString(cmd, "format")
	if formatArg == "" {
		formatArg = strings.TrimPrefix(filepath.Ext(dest), ".")
	}
	format, err := ledger.ParseFormat(formatArg)
	if err != nil {
		return err
	}

	if err := led.Export(context.Background(), dest, format); err != nil {
		return fmt.Errorf("failed to export attendance: %w", err)
	}

	fmt.Printf("Exported attendance to %s (%s)\n", dest, format)
	return nil
}
