package notify

import "github.com/bft-labs/fieldsync/internal/ports"

// LogSink writes notices to a logger. Abandoned operations are logged at
// error level so they stand out until someone acts on them.
type LogSink struct {
	logger ports.Logger
}

// NewLogSink creates a log-backed sink.
func NewLogSink(logger ports.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) NotifyQueued(description string) {
	s.logger.Info("operation saved for later", ports.String("operation", description))
}

func (s *LogSink) NotifyReconnected(pending int) {
	s.logger.Info("back online", ports.Int("pending", pending))
}

func (s *LogSink) NotifyDrainResult(succeeded, pending, abandoned int) {
	fields := []ports.Field{
		ports.Int("succeeded", succeeded),
		ports.Int("pending", pending),
		ports.Int("abandoned", abandoned),
	}
	if pending > 0 || abandoned > 0 {
		s.logger.Warn("sync finished with leftovers", fields...)
		return
	}
	s.logger.Info("sync finished", fields...)
}

func (s *LogSink) NotifyAbandoned(description, reason string) {
	s.logger.Error("operation abandoned",
		ports.String("operation", description),
		ports.String("reason", reason))
}
