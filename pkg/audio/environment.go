package audio

import "github.com/offlinefirst/action-observer/pkg/permissions"

// Environment describes microphone capture availability.
type Environment struct {
	Backend    string
	Available  bool
	Permission string
	Message    string
	Guidance   string
}

// DetectEnvironment reports which backend DefaultBackend uses and whether the
// microphone is likely usable.
func DetectEnvironment() Environment {
	probe := permissions.ProbeMicrophone(nil)
	if !nativeAvailable {
		return Environment{
			Backend:    Tone{}.Name(),
			Available:  true,
			Permission: permissions.NotApplicable,
			Message:    "synthetic tone backend",
		}
	}
	env := Environment{
		Backend:    "portaudio",
		Available:  probe.Status != permissions.StatusDenied && probe.Status != permissions.StatusUnavailable,
		Permission: probe.StatusString(),
		Message:    probe.Message,
		Guidance:   probe.Guidance,
	}
	if !env.Available && env.Message == "" {
		env.Message = "microphone permission missing"
	}
	return env
}
