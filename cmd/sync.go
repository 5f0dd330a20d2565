package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/queue"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Export attendance records to the district office",
	Long: `Push all attendance records not yet synced to the district education
office database. Requires DISTRICT_MYSQL_DSN and DISTRICT_SCHOOL_ID.`,
	RunE: runSync,
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Drain the offline attendance queue once",
	Long: `Replay attendance writes that were queued while the database was
unreachable. The serve command runs this automatically in the background;
the standalone command exists for cron jobs and debugging.`,
	RunE: runQueue,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(queueCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if a.syncer == nil {
		return errors.New("DISTRICT_MYSQL_DSN environment variable is required")
	}

	fmt.Println("Exporting attendance to the district office...")
	report, err := a.syncer.Sync(ctx)
	if err != nil {
		return fmt.Errorf("sync failed after %d records: %w", report.Exported, err)
	}

	fmt.Printf("Exported %d records", report.Exported)
	if report.Failed > 0 {
		fmt.Printf(", %d failed (kept for the next run)", report.Failed)
	}
	fmt.Println()
	return nil
}

func runQueue(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	worker := queue.NewWorker(a.queue, a.recorder)
	processed, err := worker.ProcessOnce(ctx)
	if err != nil {
		return fmt.Errorf("queue drain failed: %w", err)
	}

	fmt.Printf("Processed %d queued entries\n", processed)
	return nil
}
