package connectivity

import "context"

// Manual is a signal whose value is set by the caller. The CLI uses it for
// --connectivity=online|offline and tests use it to simulate outages.
type Manual struct {
	subs *subscribers
}

// NewManual creates a manual signal with the given initial value.
func NewManual(online bool) *Manual {
	return &Manual{subs: newSubscribers(online)}
}

func (m *Manual) IsOnline() bool                { return m.subs.get() }
func (m *Manual) OnChange(fn func(bool)) func() { return m.subs.add(fn) }
func (m *Manual) Start(context.Context) error   { return nil }
func (m *Manual) Close() error                  { return nil }

// Set publishes a new value. Subscribers run synchronously.
func (m *Manual) Set(online bool) { m.subs.publish(online) }
