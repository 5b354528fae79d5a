package runmanifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/offlinefirst/action-observer/pkg/config"
)

// SchemaVersion captures the manifest version for compatibility checks.
const SchemaVersion = 1

// File names kept beside the event log in the data directory.
const (
	ManifestFileName = "session.json"
	DatabaseFileName = "sessions.db"
	BundlesDirName   = "bundles"
)

// Layout represents the filesystem locations used by a recording.
type Layout struct {
	DataDir      string
	RawDir       string
	LogPath      string
	ManifestPath string
	DBPath       string
	BundlesDir   string
}

// Paths holds the locations stored in the manifest, relative to the data
// directory when possible and always slash-separated.
type Paths struct {
	Data     string `json:"data"`
	Raw      string `json:"raw"`
	Log      string `json:"log"`
	Manifest string `json:"manifest"`
	Database string `json:"database"`
	Bundles  string `json:"bundles"`
}

// Settings records the observer knobs a session ran with.
type Settings struct {
	DebounceMS    int    `json:"debounce_ms"`
	PushToTalkKey string `json:"push_to_talk_key"`
	RegionSize    int    `json:"region_size"`
	ImageFormat   string `json:"image_format"`
	SampleRate    int    `json:"sample_rate"`
	Backend       string `json:"backend"`
	RedactEmails  bool   `json:"redact_emails"`
}

// Status summarises the lifecycle of a session.
type Status struct {
	State        string                    `json:"state"`
	Summary      string                    `json:"summary,omitempty"`
	StartedAt    *time.Time                `json:"started_at,omitempty"`
	EndedAt      *time.Time                `json:"ended_at,omitempty"`
	Termination  string                    `json:"termination,omitempty"`
	Counts       map[string]int            `json:"counts,omitempty"`
	JoinTimeouts []string                  `json:"join_timeouts,omitempty"`
	Controller   []ControllerTimelineEntry `json:"controller_timeline,omitempty"`
	Subsystems   []SubsystemStatus         `json:"subsystems,omitempty"`
}

// ControllerTimelineEntry records controller state transitions for diagnostics.
type ControllerTimelineEntry struct {
	State     string    `json:"state"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SubsystemStatus captures availability details for an input, screen or
// microphone backend.
type SubsystemStatus struct {
	Name       string `json:"name"`
	Available  bool   `json:"available"`
	State      string `json:"state"`
	Provider   string `json:"provider,omitempty"`
	Permission string `json:"permission,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Session and subsystem states used in manifests for downstream tooling.
const (
	StatePending   = "pending"
	StateRunning   = "running"
	StateCompleted = "completed"
	StateErrored   = "error"

	SubsystemStateReady       = "ready"
	SubsystemStateUnavailable = "unavailable"
)

// Manifest is the durable metadata describing the latest session.
type Manifest struct {
	SchemaVersion int       `json:"schema_version"`
	SessionID     string    `json:"session_id"`
	CreatedAt     time.Time `json:"created_at"`
	Hostname      string    `json:"hostname"`
	AppVersion    string    `json:"app_version"`
	ConfigSource  string    `json:"config_source"`
	Settings      Settings  `json:"settings"`
	Paths         Paths     `json:"paths"`
	Status        Status    `json:"status"`
}

// Options captures the knobs for creating a new manifest.
type Options struct {
	SessionID  string
	CreatedAt  time.Time
	Hostname   string
	AppVersion string
	Config     config.Config
	Layout     Layout
}

// New constructs a manifest using the supplied options.
func New(opts Options) Manifest {
	o := opts.Config.Observer
	return Manifest{
		SchemaVersion: SchemaVersion,
		SessionID:     opts.SessionID,
		CreatedAt:     opts.CreatedAt.UTC(),
		Hostname:      opts.Hostname,
		AppVersion:    opts.AppVersion,
		ConfigSource:  opts.Config.Source,
		Settings: Settings{
			DebounceMS:    o.DebounceMS,
			PushToTalkKey: o.PushToTalkKey,
			RegionSize:    o.RegionSize,
			ImageFormat:   o.ImageFormat,
			SampleRate:    o.SampleRate,
			Backend:       o.Backend,
			RedactEmails:  opts.Config.Privacy.RedactEmails,
		},
		Paths:  opts.Layout.RelativePaths(),
		Status: Status{State: StatePending},
	}
}

// BuildLayout derives the filesystem layout from configured paths.
func BuildLayout(paths config.PathsConfig) Layout {
	return Layout{
		DataDir:      paths.DataDir,
		RawDir:       paths.RawDir,
		LogPath:      paths.LogFile,
		ManifestPath: filepath.Join(paths.DataDir, ManifestFileName),
		DBPath:       filepath.Join(paths.DataDir, DatabaseFileName),
		BundlesDir:   filepath.Join(paths.DataDir, BundlesDirName),
	}
}

// RelativePaths exposes the manifest-friendly relative paths for the layout.
func (l Layout) RelativePaths() Paths {
	return Paths{
		Data:     ".",
		Raw:      l.relative(l.RawDir),
		Log:      l.relative(l.LogPath),
		Manifest: l.relative(l.ManifestPath),
		Database: l.relative(l.DBPath),
		Bundles:  l.relative(l.BundlesDir),
	}
}

func (l Layout) relative(path string) string {
	rel, err := filepath.Rel(l.DataDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// EnsureFilesystem prepares the directory tree and touches the event log.
func EnsureFilesystem(layout Layout) error {
	if err := os.MkdirAll(layout.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	dirs := []string{
		layout.RawDir,
		filepath.Dir(layout.LogPath),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}

	file, err := os.OpenFile(layout.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("initialise event log: %w", err)
	}
	defer file.Close()

	return nil
}

// Save writes the manifest JSON to disk with indentation for readability.
func Save(man Manifest, path string) error {
	data, err := json.MarshalIndent(man, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Load reads a manifest JSON file from disk.
func Load(path string) (Manifest, error) {
	var man Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return man, fmt.Errorf("read manifest: %w", err)
	}
	if err := json.Unmarshal(data, &man); err != nil {
		return man, fmt.Errorf("decode manifest: %w", err)
	}
	return man, nil
}

// ResolveBundlePath chooses a bundle file name derived from the timestamp and
// avoids collisions with earlier exports.
func ResolveBundlePath(bundlesDir string, now time.Time) (string, error) {
	if strings.TrimSpace(bundlesDir) == "" {
		return "", errors.New("bundles directory must not be empty")
	}

	base := "observer_" + now.UTC().Format("20060102_150405")
	candidate := base + ".tar.gz"
	suffix := 1
	for {
		_, err := os.Stat(filepath.Join(bundlesDir, candidate))
		if err == nil {
			candidate = fmt.Sprintf("%s_%02d.tar.gz", base, suffix)
			suffix++
			continue
		}
		if errors.Is(err, os.ErrNotExist) {
			return filepath.Join(bundlesDir, candidate), nil
		}
		return "", fmt.Errorf("inspect bundles directory: %w", err)
	}
}
