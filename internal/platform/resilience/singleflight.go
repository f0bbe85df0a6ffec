package resilience

import (
	"fmt"
	"sync"
)

// SingleFlight coalesces concurrent calls that share a key. Do reports
// whether the caller received a result produced for someone else.
type SingleFlight struct {
	mu       sync.Mutex
	inflight map[string]*flight
}

type flight struct {
	done    chan struct{}
	val     any
	err     error
	waiters int
}

// PanicError is returned to every caller of a key whose fn panicked.
type PanicError struct {
	Key   string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("singleflight %q: panic: %v", e.Key, e.Value)
}

func (g *SingleFlight) Do(key string, fn func() (any, error)) (any, error, bool) {
	g.mu.Lock()
	if g.inflight == nil {
		g.inflight = make(map[string]*flight)
	}
	if f, ok := g.inflight[key]; ok {
		f.waiters++
		g.mu.Unlock()
		<-f.done
		return f.val, f.err, true
	}

	f := &flight{done: make(chan struct{})}
	g.inflight[key] = f
	g.mu.Unlock()

	g.run(key, f, fn)
	return f.val, f.err, f.waiters > 0
}

func (g *SingleFlight) run(key string, f *flight, fn func() (any, error)) {
	defer func() {
		if r := recover(); r != nil {
			f.val, f.err = nil, &PanicError{Key: key, Value: r}
		}

		g.mu.Lock()
		if g.inflight[key] == f {
			delete(g.inflight, key)
		}
		g.mu.Unlock()
		close(f.done)
	}()

	f.val, f.err = fn()
}

// Forget drops an in-flight key so the next Do starts a fresh call. Callers
// already waiting on the old call still receive its result.
func (g *SingleFlight) Forget(key string) {
	g.mu.Lock()
	delete(g.inflight, key)
	g.mu.Unlock()
}
