package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"gazecue/internal/ports"
)

const defaultFullscreenAck = 400 * time.Millisecond

var errFullscreenTimeout = errors.New("fullscreen request was not acknowledged")

// wailsMedia drives the page's <audio> and <video> elements through events.
type wailsMedia struct {
	app *App
}

func newWailsMedia(app *App) *wailsMedia {
	return &wailsMedia{app: app}
}

func (m *wailsMedia) PlayAudio(handle uint64, url string) error {
	return m.send(eventAudio, map[string]any{"op": "play", "handle": handle, "url": url})
}

func (m *wailsMedia) StopAudio() {
	_ = m.send(eventAudio, map[string]any{"op": "stop"})
}

func (m *wailsMedia) PlayVideo(handle uint64, url string) error {
	return m.send(eventVideo, map[string]any{"op": "play", "handle": handle, "url": url})
}

func (m *wailsMedia) PauseVideo() {
	_ = m.send(eventVideo, map[string]any{"op": "pause"})
}

// FullscreenTargets ranks the video element, then its container, then the
// native window.
func (m *wailsMedia) FullscreenTargets() []ports.FullscreenTarget {
	return []ports.FullscreenTarget{
		&pageFullscreen{app: m.app, element: "video"},
		&pageFullscreen{app: m.app, element: "container"},
		&windowFullscreen{app: m.app},
	}
}

func (m *wailsMedia) send(name string, payload any) error {
	if !m.app.emit(name, payload) {
		return errHostNotReady
	}
	return nil
}

// pageFullscreen asks the page to call requestFullscreen on one element and
// waits for FullscreenResult.
type pageFullscreen struct {
	app     *App
	element string
}

func (p *pageFullscreen) Name() string {
	return p.element
}

func (p *pageFullscreen) RequestFullscreen(ctx context.Context) error {
	if p.app.acks == nil {
		return errHostNotReady
	}
	id := uuid.NewString()
	result := p.app.acks.register(id)
	defer p.app.acks.forget(id)

	if !p.app.emit(eventFullscreen, map[string]string{"requestId": id, "target": p.element}) {
		return errHostNotReady
	}

	timeout := p.app.cfg.Session.FullscreenAck
	if timeout <= 0 {
		timeout = defaultFullscreenAck
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-result:
		return err
	case <-timer.C:
		return errFullscreenTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

type windowFullscreen struct {
	app *App
}

func (w *windowFullscreen) Name() string {
	return "window"
}

func (w *windowFullscreen) RequestFullscreen(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if w.app.ctx == nil {
		return errHostNotReady
	}
	runtime.WindowFullscreen(w.app.ctx)
	return nil
}

// fullscreenAcks pairs page acknowledgements with waiting requests.
type fullscreenAcks struct {
	mu      sync.Mutex
	pending map[string]chan error
}

func newFullscreenAcks() *fullscreenAcks {
	return &fullscreenAcks{pending: make(map[string]chan error)}
}

func (f *fullscreenAcks) register(id string) <-chan error {
	ch := make(chan error, 1)
	f.mu.Lock()
	f.pending[id] = ch
	f.mu.Unlock()
	return ch
}

func (f *fullscreenAcks) forget(id string) {
	f.mu.Lock()
	delete(f.pending, id)
	f.mu.Unlock()
}

// resolve reports false for unknown or already answered requests.
func (f *fullscreenAcks) resolve(id string, ok bool, detail string) bool {
	f.mu.Lock()
	ch, found := f.pending[id]
	delete(f.pending, id)
	f.mu.Unlock()
	if !found {
		return false
	}

	var err error
	if !ok {
		if detail == "" {
			detail = "rejected"
		}
		err = fmt.Errorf("fullscreen refused: %s", detail)
	}
	ch <- err
	return true
}
