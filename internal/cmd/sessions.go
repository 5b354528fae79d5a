package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/offlinefirst/action-observer/pkg/runmanifest"
	"github.com/offlinefirst/action-observer/pkg/store"
)

func (rc *RootCommand) newSessionsCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recorded sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := rc.ensureAppContext()
			if err != nil {
				return err
			}
			return listSessions(cmd, app, limit, rc.stdout)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of sessions to show (0 for all)")
	return cmd
}

func listSessions(cmd *cobra.Command, app *AppContext, limit int, stdout io.Writer) error {
	if limit < 0 {
		return fmt.Errorf("--limit must be >= 0")
	}
	layout := runmanifest.BuildLayout(app.Config.Paths)
	if _, err := os.Stat(layout.DBPath); errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(stdout, "No sessions recorded yet. Run 'observer run' to start one.")
		return nil
	}

	db, err := store.Open(layout.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	sessions, err := db.List(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(stdout, "No sessions recorded yet. Run 'observer run' to start one.")
		return nil
	}

	now := timeNow()
	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tSTARTED\tDURATION\tEVENTS\tCLICKS\tTYPING\tKEYS\tAUDIO\tTERMINATION")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			s.ID,
			humanize.RelTime(s.StartedAt, now, "ago", "from now"),
			s.Duration().Round(time.Second),
			humanize.Comma(int64(s.Events())),
			s.Clicks,
			s.Typing,
			s.KeyPresses,
			s.AudioCommands,
			s.Termination,
		)
	}
	return tw.Flush()
}
