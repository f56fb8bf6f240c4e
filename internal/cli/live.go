package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/tasklist/internal/events"
	"github.com/vyrodovalexey/tasklist/internal/tui"
)

// feedBuffer bounds how many server events wait for the list view.
const feedBuffer = 16

func newTUICmd(app *App) *cobra.Command {
	var live bool

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive list view",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			var opts []tui.Option
			if live {
				opts = append(opts, tui.WithEvents(app.feed(ctx)))
			}

			return tui.Run(ctx, app.engine(), opts...)
		},
	}
	cmd.Flags().BoolVar(&live, "live", true, "Show changes pushed by the server")

	return cmd
}

// feed forwards the list's server events to a channel until ctx ends.
// Events are dropped while the channel is full.
func (a *App) feed(ctx context.Context) <-chan events.Event {
	ch := make(chan events.Event, feedBuffer)
	go func() {
		defer close(ch)
		err := a.client.Watch(ctx, a.cfg.ListID, func(e events.Event) {
			select {
			case ch <- e:
			default:
			}
		})
		if err != nil {
			a.logger.Warn("event stream ended", zap.Error(err))
		}
	}()
	return ch
}

func newWatchCmd(app *App) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print item events as the server publishes them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			listID := app.cfg.ListID
			if all {
				listID = ""
			}

			out := cmd.OutOrStdout()
			return app.client.Watch(cmd.Context(), listID, func(e events.Event) {
				fmt.Fprintf(out, "%s %-14s %-12s %s (%s)\n",
					e.OccurredAt.Local().Format("15:04:05"), e.Type, e.ListID, e.Name, e.ItemID)
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Watch every list instead of --list")

	return cmd
}
