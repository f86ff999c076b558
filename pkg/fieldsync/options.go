package fieldsync

import (
	"github.com/bft-labs/fieldsync/internal/domain"
	"github.com/bft-labs/fieldsync/pkg/log"
)

// Option configures optional behavior of a Service.
type Option func(*options)

type options struct {
	httpClient    HTTPClient
	logger        Logger
	remote        RemoteStore
	persistence   LocalPersistence
	signal        ConnectivitySignal
	sinks         []NotificationSink
	metrics       Metrics
	handlers      map[domain.Kind]Handler
	sweepSchedule string
	eventHandler  EventHandler
	plugins       []Plugin
}

func defaultOptions() options {
	return options{
		logger:   log.NewNoopLogger(),
		handlers: make(map[domain.Kind]Handler),
	}
}

// WithHTTPClient sets the client used by the default HTTP remote store.
// If not provided, a client with Config.HTTPTimeout is used.
func WithHTTPClient(client HTTPClient) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRemoteStore replaces the HTTP remote store.
func WithRemoteStore(remote RemoteStore) Option {
	return func(o *options) {
		o.remote = remote
	}
}

// WithPersistence replaces the file-backed queue storage.
func WithPersistence(p LocalPersistence) Option {
	return func(o *options) {
		o.persistence = p
	}
}

// WithConnectivitySignal sets the connectivity source. The service starts
// and closes it.
func WithConnectivitySignal(signal ConnectivitySignal) Option {
	return func(o *options) {
		o.signal = signal
	}
}

// WithNotificationSink adds a sink for operator notices. Sinks are called in
// registration order after the built-in log sink.
func WithNotificationSink(sink NotificationSink) Option {
	return func(o *options) {
		o.sinks = append(o.sinks, sink)
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithHandler routes operations of kind to h instead of the remote store.
func WithHandler(kind Kind, h Handler) Option {
	return func(o *options) {
		o.handlers[kind] = h
	}
}

// WithSweepSchedule adds a periodic drain on a cron schedule, for example
// "@every 1m" or "*/5 * * * *". It catches queues left behind when a
// connectivity signal misses a transition.
func WithSweepSchedule(spec string) Option {
	return func(o *options) {
		o.sweepSchedule = spec
	}
}

// WithEventHandler sets a handler for service events.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithPlugin registers a plugin to be initialized when the service starts.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}
