package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/offlinefirst/action-observer/pkg/audio"
	"github.com/offlinefirst/action-observer/pkg/input"
	"github.com/offlinefirst/action-observer/pkg/runmanifest"
	"github.com/offlinefirst/action-observer/pkg/screenshots"
)

func (rc *RootCommand) newDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Report capture backends, permissions and data paths",
		Long: `Checks which input, screen and microphone backends this build uses,
whether the operating system is likely to grant them access, and whether
the configured data directory is writable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := rc.ensureAppContext()
			if err != nil {
				return err
			}
			return runDoctor(app, rc.stdout)
		},
	}
}

// doctorReport is the environment snapshot doctor prints; swapped in tests.
var doctorReport = func() []doctorCheck {
	in := input.DetectEnvironment()
	screen := screenshots.DetectEnvironment()
	mic := audio.DetectEnvironment()
	return []doctorCheck{
		{Name: "input", Provider: in.Provider, Available: in.Available, Permission: in.Permission, Message: in.Message, Guidance: in.Guidance},
		{Name: "screenshots", Provider: screen.Provider, Available: screen.Available, Permission: screen.Permission, Message: screen.Message, Guidance: screen.Guidance},
		{Name: "audio", Provider: mic.Backend, Available: mic.Available, Permission: mic.Permission, Message: mic.Message, Guidance: mic.Guidance},
	}
}

type doctorCheck struct {
	Name       string
	Provider   string
	Available  bool
	Permission string
	Message    string
	Guidance   string
}

func runDoctor(app *AppContext, stdout io.Writer) error {
	fmt.Fprintf(stdout, "observer %s\n", versionString())
	fmt.Fprintf(stdout, "Configuration: %s\n\n", app.Config.Source)

	problems := 0
	for _, check := range doctorReport() {
		mark := "✓"
		if !check.Available {
			mark = "✗"
			problems++
		}
		fmt.Fprintf(stdout, "%s %s: provider=%s permission=%s", mark, check.Name, check.Provider, check.Permission)
		if check.Message != "" {
			fmt.Fprintf(stdout, " (%s)", check.Message)
		}
		fmt.Fprintln(stdout)
		if check.Guidance != "" {
			fmt.Fprintf(stdout, "  Action: %s\n", check.Guidance)
		}
	}

	layout := runmanifest.BuildLayout(app.Config.Paths)
	if err := checkWritable(layout.DataDir); err != nil {
		fmt.Fprintf(stdout, "✗ data directory %s: %v\n", layout.DataDir, err)
		problems++
	} else {
		fmt.Fprintf(stdout, "✓ data directory %s is writable\n", layout.DataDir)
	}

	fmt.Fprintln(stdout)
	if problems > 0 {
		fmt.Fprintf(stdout, "%d problem(s) found.\n", problems)
		return nil
	}
	fmt.Fprintln(stdout, "All checks passed.")
	return nil
}

// checkWritable creates dir if needed and probes it with a temporary file.
func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create: %w", err)
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return fmt.Errorf("write probe: %w", err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
