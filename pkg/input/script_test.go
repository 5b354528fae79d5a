package input

import (
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu       sync.Mutex
	clicks   []Click
	presses  []Key
	releases []Key
}

func (r *recorder) attach(src Source) {
	src.OnClick(func(c Click) {
		r.mu.Lock()
		r.clicks = append(r.clicks, c)
		r.mu.Unlock()
	})
	src.OnKeyPress(func(k Key) {
		r.mu.Lock()
		r.presses = append(r.presses, k)
		r.mu.Unlock()
	})
	src.OnKeyRelease(func(k Key) {
		r.mu.Lock()
		r.releases = append(r.releases, k)
		r.mu.Unlock()
	})
}

func TestScriptDeliversStepsInOrder(t *testing.T) {
	steps := []Step{ClickAt(0, "left", 100, 200)}
	steps = append(steps, TypeText(0, 0, "a b")...)
	steps = append(steps, ReleaseKey(0, NamedKey("enter")))
	src := NewScript(steps...)
	rec := &recorder{}
	rec.attach(src)

	if err := src.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	select {
	case <-src.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("script did not finish")
	}
	if err := src.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if len(rec.clicks) != 1 || rec.clicks[0] != (Click{Button: "left", X: 100, Y: 200}) {
		t.Fatalf("unexpected clicks %+v", rec.clicks)
	}
	want := []Key{CharKey('a'), NamedKey("space"), CharKey('b')}
	if len(rec.presses) != len(want) {
		t.Fatalf("expected %d presses, got %d", len(want), len(rec.presses))
	}
	for i := range want {
		if rec.presses[i] != want[i] {
			t.Fatalf("press %d: expected %+v, got %+v", i, want[i], rec.presses[i])
		}
	}
	if len(rec.releases) != 1 || rec.releases[0].Name != "enter" {
		t.Fatalf("unexpected releases %+v", rec.releases)
	}
}

func TestScriptStopInterruptsDelay(t *testing.T) {
	src := NewScript(ClickAt(time.Hour, "left", 1, 1))
	rec := &recorder{}
	rec.attach(src)
	if err := src.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	stopped := make(chan struct{})
	go func() {
		_ = src.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatalf("stop blocked on pending delay")
	}
	if len(rec.clicks) != 0 {
		t.Fatalf("expected no clicks after stop, got %d", len(rec.clicks))
	}
}

func TestScriptRejectsDoubleStart(t *testing.T) {
	src := NewScript()
	if err := src.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer src.Stop()
	if err := src.Start(); err == nil {
		t.Fatalf("expected error on second start")
	}
}

func TestDemoScriptCyclesPushToTalk(t *testing.T) {
	ptt := NamedKey("ctrl_r")
	var pressed, released bool
	for _, step := range DemoScript(ptt) {
		if step.Press != nil && step.Press.Matches(ptt) {
			pressed = true
		}
		if step.Release != nil && step.Release.Matches(ptt) {
			if !pressed {
				t.Fatalf("release scripted before press")
			}
			released = true
		}
	}
	if !pressed || !released {
		t.Fatalf("expected a full push-to-talk cycle")
	}
}
