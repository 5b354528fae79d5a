package permissions

import (
	"os"
	"runtime"
	"strings"
)

// Status enumerates coarse permission results for OS privacy prompts.
type Status string

const (
	// StatusUnknown indicates no explicit signal about permission state.
	StatusUnknown Status = "unknown"
	// StatusGranted signals that permission was previously granted.
	StatusGranted Status = "granted"
	// StatusDenied indicates the user has explicitly denied access.
	StatusDenied Status = "denied"
	// StatusPromptRequired means the platform will prompt at runtime.
	StatusPromptRequired Status = "prompt"
	// StatusUnavailable reports that the capability is not supported.
	StatusUnavailable Status = "unavailable"
)

// NotApplicable is reported when a backend needs no OS permission, such as the
// synthetic providers.
const NotApplicable = "not_applicable"

// Environment overrides consulted by the probes.
const (
	EnvInputMonitoring = "OBSERVER_INPUT_MONITORING"
	EnvScreenRecording = "OBSERVER_SCREEN_RECORDING"
	EnvMicrophone      = "OBSERVER_MICROPHONE"
)

// ProbeResult represents the coarse state for a permission surface.
type ProbeResult struct {
	Status   Status
	Message  string
	Guidance string
}

// LookupEnvFunc exposes environment probing for testability.
type LookupEnvFunc func(string) (string, bool)

// lookupEnv is declared for swapping in tests.
var lookupEnv = func(key string) (string, bool) {
	return os.LookupEnv(key)
}

// goos is declared for swapping in tests.
var goos = runtime.GOOS

// ProbeInputMonitoring reports whether global keyboard and pointer hooks are
// likely to be delivered.
func ProbeInputMonitoring(lookup LookupEnvFunc) ProbeResult {
	if lookup == nil {
		lookup = lookupEnv
	}
	if value, ok := lookup(EnvInputMonitoring); ok {
		return interpretPermissionFlag("input monitoring", value)
	}
	switch goos {
	case "darwin":
		return ProbeResult{
			Status:   StatusPromptRequired,
			Message:  "input monitoring and accessibility trust required",
			Guidance: "grant the terminal access under System Settings > Privacy & Security > Input Monitoring",
		}
	case "linux":
		if _, ok := lookup("WAYLAND_DISPLAY"); ok {
			return ProbeResult{Status: StatusUnavailable, Message: "global input hooks are not delivered under Wayland", Guidance: "run inside an X11 session"}
		}
		return ProbeResult{Status: StatusGranted, Message: "X11 delivers global input without a prompt"}
	case "windows":
		return ProbeResult{Status: StatusGranted, Message: "low-level hooks need no prompt"}
	}
	return ProbeResult{Status: StatusUnavailable, Message: "input hooks unsupported on this platform"}
}

// ProbeScreenRecording inspects the execution environment for screen recording permissions.
func ProbeScreenRecording(lookup LookupEnvFunc) ProbeResult {
	if lookup == nil {
		lookup = lookupEnv
	}
	if value, ok := lookup(EnvScreenRecording); ok {
		return interpretPermissionFlag("screen recording", value)
	}
	switch goos {
	case "darwin":
		return ProbeResult{Status: StatusPromptRequired, Message: "awaiting macOS screen recording authorisation"}
	case "linux", "windows":
		return ProbeResult{Status: StatusGranted, Message: "screen capture needs no prompt"}
	}
	return ProbeResult{Status: StatusUnavailable, Message: "screen recording unsupported on this platform"}
}

// ProbeMicrophone reports coarse microphone capture permissions.
func ProbeMicrophone(lookup LookupEnvFunc) ProbeResult {
	if lookup == nil {
		lookup = lookupEnv
	}
	if value, ok := lookup(EnvMicrophone); ok {
		return interpretPermissionFlag("microphone", value)
	}
	switch goos {
	case "darwin":
		return ProbeResult{Status: StatusPromptRequired, Message: "microphone access will prompt at runtime"}
	case "linux", "windows":
		return ProbeResult{Status: StatusUnknown, Message: "microphone access depends on the audio server"}
	}
	return ProbeResult{Status: StatusUnavailable, Message: "microphone capture unsupported"}
}

func interpretPermissionFlag(name, value string) ProbeResult {
	normalised := strings.ToLower(strings.TrimSpace(value))
	switch normalised {
	case "granted", "allow", "allowed", "yes", "true":
		return ProbeResult{Status: StatusGranted, Message: name + " permission pre-authorised via env override"}
	case "denied", "no", "false", "blocked":
		return ProbeResult{Status: StatusDenied, Message: name + " permission denied via env override", Guidance: "update the system privacy settings or the OBSERVER_* env to re-test"}
	case "prompt", "ask":
		return ProbeResult{Status: StatusPromptRequired, Message: name + " permission will prompt at runtime"}
	case "unavailable", "unsupported":
		return ProbeResult{Status: StatusUnavailable, Message: name + " permission unavailable on this platform"}
	default:
		return ProbeResult{Status: StatusUnknown, Message: name + " permission state unknown"}
	}
}

// StatusString returns the string representation for manifest integration.
func (p ProbeResult) StatusString() string {
	if p.Status == "" {
		return string(StatusUnknown)
	}
	return string(p.Status)
}
