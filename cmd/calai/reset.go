package calai

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yazinsai/cal-ai/internal/service"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Inspect or advance the daily rollover marker",
}

var resetCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Roll the working day over if the local date has changed",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(e *env) error {
			sched := service.NewResetScheduler(e.st, e.clk, logger)
			ev, changed, err := sched.Check(service.TriggerManual)
			if err != nil {
				return err
			}
			if !changed {
				fmt.Fprintln(cmd.OutOrStdout(), "Already current")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rolled over from %s to %s\n", orDash(ev.From), ev.To)
			return nil
		})
	},
}

var resetStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the working day is current",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(e *env) error {
			sched := service.NewResetScheduler(e.st, e.clk, logger)
			marker, _ := e.st.ResetMarker()
			fmt.Fprintf(cmd.OutOrStdout(), "State: %s\n", sched.State())
			fmt.Fprintf(cmd.OutOrStdout(), "Marker: %s\n", orDash(marker))
			return nil
		})
	},
}

var watchWakeOnInput bool

// watchCmd keeps a scheduler running and prints every rollover. With
// --wake-on-input each line on stdin counts as the client coming back to
// the foreground.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the rollover scheduler in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return withStore(func(e *env) error {
			sched := service.NewResetScheduler(e.st, e.clk, logger)
			out := cmd.OutOrStdout()
			unsub := sched.Subscribe(func(ev service.Rollover) {
				fmt.Fprintf(out, "%s rolled over to %s (%s)\n", ev.At.Format("2006-01-02 15:04:05"), ev.To, ev.Trigger)
			})
			defer unsub()
			if watchWakeOnInput {
				go func() {
					sc := bufio.NewScanner(cmd.InOrStdin())
					for sc.Scan() {
						sched.Foreground()
					}
				}()
			}
			return sched.Run(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(resetCmd, watchCmd)
	resetCmd.AddCommand(resetCheckCmd, resetStatusCmd)
	watchCmd.Flags().BoolVar(&watchWakeOnInput, "wake-on-input", false, "Re-check whenever a line is read from stdin")
}
