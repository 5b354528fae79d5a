package screenshots

import (
	"github.com/offlinefirst/action-observer/pkg/permissions"
)

// Environment describes screenshot capture availability.
type Environment struct {
	Provider   string
	Available  bool
	Permission string
	Message    string
	Guidance   string
}

const (
	providerNative    = "kbinani-screenshot"
	providerSynthetic = "synthetic"
)

// DetectEnvironment reports screenshot backend support and permissions.
func DetectEnvironment() Environment {
	screenRecording := permissions.ProbeScreenRecording(nil)
	env := Environment{
		Provider:   providerSynthetic,
		Permission: screenRecording.StatusString(),
		Message:    screenRecording.Message,
		Guidance:   screenRecording.Guidance,
		Available:  true,
	}

	if nativeAvailable {
		env.Provider = providerNative
		env.Available = screenRecording.Status != permissions.StatusDenied
		if !env.Available && env.Message == "" {
			env.Message = "screen recording permission missing"
		}
	} else {
		env.Permission = permissions.NotApplicable
		env.Message = "synthetic gradient frames"
	}

	if !env.Available {
		env.Provider = providerSynthetic
	}
	return env
}
