//go:build !native

package input

const nativeAvailable = false

// DefaultSource returns the scripted demo source; native hooks require the
// "native" build tag.
func DefaultSource(pushToTalk Key) (Source, error) {
	return NewScript(DemoScript(pushToTalk)...), nil
}
