//go:build !native

package audio

const nativeAvailable = false

// DefaultBackend returns the synthetic tone backend in builds without
// PortAudio.
func DefaultBackend() (Backend, error) {
	return Tone{}, nil
}
