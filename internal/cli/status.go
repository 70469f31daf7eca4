package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

// NewStatusCmd создаёт команду сводки состояния движка.
func NewStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show engine status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			status, err := client.Status()
			if err != nil {
				return err
			}

			out.PrintKV([][2]string{
				{"Status", status.Status},
				{"Uptime", status.Uptime},
				{"Pending publications", strconv.Itoa(status.PendingPublications)},
				{"Pending reminders", strconv.Itoa(status.PendingReminders)},
				{"Active events", strconv.Itoa(status.ActiveEvents)},
				{"Countdown timers", strconv.Itoa(status.CountdownTimers)},
			}, status)
			return nil
		},
	}
}
