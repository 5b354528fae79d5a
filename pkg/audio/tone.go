package audio

import (
	"errors"
	"math"
	"sync"
	"time"
)

// Tone is a synthetic backend producing a quiet sine wave in 20ms chunks. It
// stands in for a microphone in builds without PortAudio.
type Tone struct {
	Frequency float64
}

func (Tone) Name() string {
	return "synthetic"
}

func (t Tone) Open(sampleRate int, onFrames func([]float32)) (Stream, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sample rate must be positive")
	}
	freq := t.Frequency
	if freq == 0 {
		freq = 440
	}
	return &toneStream{rate: sampleRate, freq: freq, onFrames: onFrames}, nil
}

type toneStream struct {
	rate     int
	freq     float64
	onFrames func([]float32)

	once sync.Once
	stop chan struct{}
	done chan struct{}
}

func (s *toneStream) Start() error {
	if s.stop != nil {
		return errors.New("tone stream already started")
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run()
	return nil
}

func (s *toneStream) run() {
	defer close(s.done)
	const chunk = 20 * time.Millisecond
	n := s.rate * int(chunk/time.Millisecond) / 1000
	ticker := time.NewTicker(chunk)
	defer ticker.Stop()
	phase := 0
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			buf := make([]float32, n)
			for i := range buf {
				buf[i] = float32(0.2 * math.Sin(2*math.Pi*s.freq*float64(phase+i)/float64(s.rate)))
			}
			phase += n
			s.onFrames(buf)
		}
	}
}

func (s *toneStream) Close() error {
	if s.stop == nil {
		return nil
	}
	s.once.Do(func() { close(s.stop) })
	<-s.done
	return nil
}
