package app

import (
	"fmt"

	"github.com/bft-labs/fieldsync/internal/ports"
)

// guardedSink shields the queue from a misbehaving NotificationSink.
// Notices are advisory; a panic in one is logged and swallowed.
type guardedSink struct {
	sink   ports.NotificationSink
	logger ports.Logger
}

// GuardSink wraps sink so that panics are logged instead of propagated.
// A nil sink discards every notice.
func GuardSink(sink ports.NotificationSink, logger ports.Logger) ports.NotificationSink {
	return guardSink(sink, logger)
}

func guardSink(sink ports.NotificationSink, logger ports.Logger) *guardedSink {
	return &guardedSink{sink: sink, logger: logger}
}

func (g *guardedSink) run(name string, fn func()) {
	if g.sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("notification sink panicked",
				ports.String("notice", name),
				ports.String("panic", fmt.Sprint(r)))
		}
	}()
	fn()
}

func (g *guardedSink) NotifyQueued(description string) {
	g.run("queued", func() { g.sink.NotifyQueued(description) })
}

func (g *guardedSink) NotifyReconnected(pending int) {
	g.run("reconnected", func() { g.sink.NotifyReconnected(pending) })
}

func (g *guardedSink) NotifyDrainResult(succeeded, pending, abandoned int) {
	g.run("drain_result", func() { g.sink.NotifyDrainResult(succeeded, pending, abandoned) })
}

func (g *guardedSink) NotifyAbandoned(description, reason string) {
	g.run("abandoned", func() { g.sink.NotifyAbandoned(description, reason) })
}
