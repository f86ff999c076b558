package connectivity

import "sync"

// subscribers holds OnChange callbacks and the last published value.
type subscribers struct {
	mu     sync.Mutex
	online bool
	next   int
	fns    map[int]func(bool)
}

func newSubscribers(initial bool) *subscribers {
	return &subscribers{online: initial, fns: make(map[int]func(bool))}
}

func (s *subscribers) get() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

func (s *subscribers) add(fn func(bool)) func() {
	s.mu.Lock()
	id := s.next
	s.next++
	s.fns[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.fns, id)
			s.mu.Unlock()
		})
	}
}

// publish stores v and, if it changed, calls every subscriber outside the lock.
func (s *subscribers) publish(v bool) {
	s.mu.Lock()
	if s.online == v {
		s.mu.Unlock()
		return
	}
	s.online = v
	fns := make([]func(bool), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}
