package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance [date]",
	Short: "Show the attendance report for a day",
	Long: `Print the attendance report for one school day. The date must be given
as YYYY-MM-DD; without it the report covers today.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAttendance,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)
}

func runAttendance(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	date := a.recorder.Today()
	if len(args) == 1 {
		date, err = time.Parse("2006-01-02", args[0])
		if err != nil {
			return fmt.Errorf("date must be YYYY-MM-DD: %w", err)
		}
	}

	records, err := a.records.ListByDate(ctx, date)
	if err != nil {
		return fmt.Errorf("failed to load attendance: %w", err)
	}

	enrolled, err := a.students.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count students: %w", err)
	}

	fmt.Printf("Attendance for %s\n\n", date.Format("2006-01-02"))
	for _, rec := range records {
		confidence := "-"
		if rec.Confidence != nil {
			confidence = fmt.Sprintf("%.2f", *rec.Confidence)
		}
		fmt.Printf("%-12s %-30s %s  confidence %s\n",
			rec.StudentCode, rec.StudentName, rec.MarkedAt.Format("15:04"), confidence)
	}
	fmt.Printf("\nPresent: %d of %d enrolled\n", len(records), enrolled)
	return nil
}
