package cli

import (
	"github.com/spf13/cobra"
)

// NewCountdownCmd создаёт команду просмотра таймеров отсчёта.
func NewCountdownCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "countdown",
		Short: "List live countdown timers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			timers, err := client.ListCountdown()
			if err != nil {
				return err
			}

			headers := []string{"EVENT_ID", "MESSAGE_ID", "SERVER", "CHANNEL", "NEXT_FIRE"}
			rows := make([][]string, len(timers))
			for i, t := range timers {
				rows[i] = []string{t.EventID, t.MessageID, t.ServerID, t.ChannelID, t.NextFireAt}
			}

			out.Print(headers, rows, timers)
			return nil
		},
	}
}
