//go:build native

package audio

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

const nativeAvailable = true

// DefaultBackend records from the default input device through PortAudio.
func DefaultBackend() (Backend, error) {
	return portAudioBackend{}, nil
}

type portAudioBackend struct{}

func (portAudioBackend) Name() string {
	return "portaudio"
}

func (portAudioBackend) Open(sampleRate int, onFrames func([]float32)) (Stream, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), 0, func(in []float32) {
		onFrames(in)
	})
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("open input stream: %w", err)
	}
	return &portAudioStream{stream: stream}, nil
}

type portAudioStream struct {
	stream *portaudio.Stream
}

func (s *portAudioStream) Start() error {
	if err := s.stream.Start(); err != nil {
		return fmt.Errorf("start input stream: %w", err)
	}
	return nil
}

func (s *portAudioStream) Close() error {
	stopErr := s.stream.Stop()
	closeErr := s.stream.Close()
	termErr := portaudio.Terminate()
	for _, err := range []error{stopErr, closeErr, termErr} {
		if err != nil {
			return fmt.Errorf("close input stream: %w", err)
		}
	}
	return nil
}
