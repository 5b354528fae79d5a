package input

import (
	"github.com/offlinefirst/action-observer/pkg/permissions"
)

// Provider identifiers for reporting.
const (
	ProviderGoHook    = "gohook"
	ProviderSynthetic = "synthetic"
)

// Environment summarises input hook support on this host.
type Environment struct {
	Provider   string
	Available  bool
	Permission string
	Message    string
	Guidance   string
}

// DetectEnvironment reports which input backend DefaultSource will use.
func DetectEnvironment() Environment {
	probe := permissions.ProbeInputMonitoring(nil)
	env := Environment{
		Provider:   ProviderSynthetic,
		Available:  true,
		Permission: probe.StatusString(),
		Message:    probe.Message,
		Guidance:   probe.Guidance,
	}
	if nativeAvailable {
		env.Provider = ProviderGoHook
		env.Available = probe.Status != permissions.StatusDenied
		if !env.Available && env.Message == "" {
			env.Message = "input monitoring permission missing"
		}
		return env
	}
	env.Permission = permissions.NotApplicable
	env.Message = "built without native hooks; scripted input only"
	return env
}
