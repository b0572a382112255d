package bot

import "sync"

// inflight counts running work and, once closed, waits for it and refuses
// anything new. Unlike a bare WaitGroup it tolerates enter racing close.
type inflight struct {
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// enter registers one unit of work. It reports false after close.
func (f *inflight) enter() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.wg.Add(1)
	return true
}

func (f *inflight) leave() {
	f.wg.Done()
}

// close refuses new work and blocks until the registered work has left.
func (f *inflight) close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.wg.Wait()
}
