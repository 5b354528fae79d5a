package cmd

import (
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/offlinefirst/action-observer/pkg/follow"
)

func (rc *RootCommand) newTailCommand() *cobra.Command {
	var keepFollowing bool
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print the event log, optionally following new lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := rc.ensureAppContext()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), stopSignals...)
			defer stop()
			return follow.Tail(ctx, follow.Options{
				Path:   app.Config.Paths.LogFile,
				Out:    rc.stdout,
				Follow: keepFollowing,
			})
		},
	}
	cmd.Flags().BoolVarP(&keepFollowing, "follow", "f", false, "Keep printing lines as they are appended")
	return cmd
}
