package cmd

import (
	"fmt"

	"github.com/offlinefirst/action-observer/pkg/audio"
	"github.com/offlinefirst/action-observer/pkg/config"
	"github.com/offlinefirst/action-observer/pkg/input"
	"github.com/offlinefirst/action-observer/pkg/permissions"
	"github.com/offlinefirst/action-observer/pkg/runmanifest"
	"github.com/offlinefirst/action-observer/pkg/screenshots"
)

// backends is the set of capture adapters a session records from.
type backends struct {
	source  input.Source
	screens screenshots.Provider
	audio   audio.Backend
}

// demoSteps is the scripted session used by synthetic runs; swapped in tests.
var demoSteps = input.DemoScript

func syntheticBackends(ptt input.Key) backends {
	return backends{
		source:  input.NewScript(demoSteps(ptt)...),
		screens: screenshots.NewSynthetic(),
		audio:   audio.Tone{},
	}
}

// selectBackends resolves observer.backend. "native" fails when the binary
// was built without native hooks; "auto" takes whatever the build offers.
func selectBackends(mode string, ptt input.Key) (backends, error) {
	switch mode {
	case config.BackendSynthetic:
		return syntheticBackends(ptt), nil
	case config.BackendNative:
		if env := input.DetectEnvironment(); env.Provider != input.ProviderGoHook {
			return backends{}, fmt.Errorf("native backends unavailable: %s (rebuild with -tags native)", env.Message)
		}
	case config.BackendAuto, "":
	default:
		return backends{}, fmt.Errorf("unknown backend %q", mode)
	}

	src, err := input.DefaultSource(ptt)
	if err != nil {
		return backends{}, fmt.Errorf("open input source: %w", err)
	}
	screens, err := screenshots.DefaultProvider()
	if err != nil {
		return backends{}, fmt.Errorf("open screen capture: %w", err)
	}
	mic, err := audio.DefaultBackend()
	if err != nil {
		return backends{}, fmt.Errorf("open audio backend: %w", err)
	}
	return backends{source: src, screens: screens, audio: mic}, nil
}

// subsystemStatuses captures the environment report persisted in the manifest
// and printed by doctor. A synthetic session reports its stand-in adapters.
func subsystemStatuses(synthetic bool) []runmanifest.SubsystemStatus {
	if synthetic {
		return []runmanifest.SubsystemStatus{
			subsystem("input", input.ProviderSynthetic, true, permissions.NotApplicable, "scripted input"),
			subsystem("screenshots", screenshots.NewSynthetic().Name(), true, permissions.NotApplicable, "synthetic gradient frames"),
			subsystem("audio", audio.Tone{}.Name(), true, permissions.NotApplicable, "synthetic tone backend"),
		}
	}
	in := input.DetectEnvironment()
	screen := screenshots.DetectEnvironment()
	mic := audio.DetectEnvironment()
	return []runmanifest.SubsystemStatus{
		subsystem("input", in.Provider, in.Available, in.Permission, in.Message),
		subsystem("screenshots", screen.Provider, screen.Available, screen.Permission, screen.Message),
		subsystem("audio", mic.Backend, mic.Available, mic.Permission, mic.Message),
	}
}

func subsystem(name, provider string, available bool, permission, message string) runmanifest.SubsystemStatus {
	state := runmanifest.SubsystemStateReady
	if !available {
		state = runmanifest.SubsystemStateUnavailable
	}
	return runmanifest.SubsystemStatus{
		Name:       name,
		Available:  available,
		State:      state,
		Provider:   provider,
		Permission: permission,
		Message:    message,
	}
}
