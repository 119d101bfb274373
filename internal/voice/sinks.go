package voice

import "sync"

// AudioSink is one playback output (a rendered participant's audio).
// Components register sinks explicitly instead of the controller
// scraping whatever happens to be rendered, so deafen and volume reach
// sinks registered after the toggle too.
type AudioSink interface {
	SetMuted(bool)
	SetVolume(percent int)
}

// SinkRegistry is the shared pool of playback sinks for one session.
// It remembers the current deafen flag and volume and applies both to
// every sink on registration.
type SinkRegistry struct {
	mu       sync.Mutex
	sinks    map[AudioSink]struct{}
	deafened bool
	volume   int
}

func NewSinkRegistry() *SinkRegistry {
	return &SinkRegistry{
		sinks:  make(map[AudioSink]struct{}),
		volume: 100,
	}
}

func (r *SinkRegistry) Register(s AudioSink) {
	r.mu.Lock()
	r.sinks[s] = struct{}{}
	deafened, volume := r.deafened, r.volume
	r.mu.Unlock()
	s.SetMuted(deafened)
	s.SetVolume(volume)
}

func (r *SinkRegistry) Unregister(s AudioSink) {
	r.mu.Lock()
	delete(r.sinks, s)
	r.mu.Unlock()
}

func (r *SinkRegistry) SetDeafened(deafened bool) {
	r.mu.Lock()
	r.deafened = deafened
	snap := r.snapshotLocked()
	r.mu.Unlock()
	for _, s := range snap {
		s.SetMuted(deafened)
	}
}

func (r *SinkRegistry) SetVolume(percent int) {
	r.mu.Lock()
	r.volume = percent
	snap := r.snapshotLocked()
	r.mu.Unlock()
	for _, s := range snap {
		s.SetVolume(percent)
	}
}

func (r *SinkRegistry) Deafened() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deafened
}

func (r *SinkRegistry) Volume() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.volume
}

func (r *SinkRegistry) snapshotLocked() []AudioSink {
	out := make([]AudioSink, 0, len(r.sinks))
	for s := range r.sinks {
		out = append(out, s)
	}
	return out
}
