package cmd

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/offlinefirst/action-observer/pkg/bundle"
	"github.com/offlinefirst/action-observer/pkg/runmanifest"
)

func (rc *RootCommand) newBundleCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Pack the event log, manifest and raw media into a .tar.gz",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := rc.ensureAppContext()
			if err != nil {
				return err
			}
			return exportBundle(cmd, app, out, rc.stdout)
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Archive path (default: <data_dir>/bundles/observer_<timestamp>.tar.gz)")
	return cmd
}

func exportBundle(cmd *cobra.Command, app *AppContext, out string, stdout io.Writer) error {
	layout := runmanifest.BuildLayout(app.Config.Paths)
	res, err := bundle.Export(cmd.Context(), bundle.Options{
		Layout: layout,
		Path:   out,
		Clock:  timeNow,
	})
	if err != nil {
		return fmt.Errorf("export bundle: %w", err)
	}
	app.Logger.Info("bundle exported", "path", res.Path, "files", res.Files, "bytes", res.Bytes)
	fmt.Fprintf(stdout, "Bundle written: %s\n", res.Path)
	fmt.Fprintf(stdout, "  %d files, %s packed into %s\n", res.Files, humanize.Bytes(uint64(res.Bytes)), humanize.Bytes(uint64(res.CompressedSize)))
	return nil
}
