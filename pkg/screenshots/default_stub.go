//go:build !native

package screenshots

const nativeAvailable = false

// DefaultProvider returns the synthetic provider in builds without native
// capture.
func DefaultProvider() (Provider, error) {
	return NewSynthetic(), nil
}
