package fieldsync

import (
	"context"

	"github.com/bft-labs/fieldsync/internal/app"
	"github.com/bft-labs/fieldsync/internal/domain"
	"github.com/bft-labs/fieldsync/internal/ports"
)

// Re-exported types so embedders need only this package.
type (
	Kind             = domain.Kind
	Action           = domain.Action
	Result           = domain.Result
	PendingOperation = domain.PendingOperation
	ConnectionState  = domain.ConnectionState

	Request     = app.Request
	Handler     = app.Handler
	DrainReport = app.DrainReport

	Logger             = ports.Logger
	LogField           = ports.Field
	HTTPClient         = ports.HTTPClient
	RemoteStore        = ports.RemoteStore
	LocalPersistence   = ports.LocalPersistence
	ConnectivitySignal = ports.ConnectivitySignal
	NotificationSink   = ports.NotificationSink
	Metrics            = ports.Metrics
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)

// Errors returned by the service.
var (
	ErrAlreadyRunning   = domain.ErrAlreadyRunning
	ErrNotRunning       = domain.ErrNotRunning
	ErrShutdownTimeout  = domain.ErrShutdownTimeout
	ErrInvalidConfig    = domain.ErrInvalidConfig
	ErrInvalidOperation = domain.ErrInvalidOperation
	ErrConnectivity     = domain.ErrConnectivity
)

// State is the lifecycle state of a Service.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

func (s State) String() string {
	return toAppState(s).String()
}

// StateChangeEvent describes a lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// EventHandler receives service events. Methods are called synchronously
// and should return quickly.
type EventHandler interface {
	OnStateChange(event StateChangeEvent)

	// OnDrain is called after every replay pass that did work.
	OnDrain(report DrainReport)
}

// PluginConfig is handed to plugins on Start.
type PluginConfig struct {
	ServiceURL string
	StateDir   string
	Logger     Logger
	// Service lets plugins query queue and connectivity state.
	Service *Service
}

// Plugin extends a Service. Plugins are initialized in registration order
// on Start and shut down in reverse order on Stop.
type Plugin interface {
	Name() string
	Initialize(ctx context.Context, cfg PluginConfig) error
	Shutdown(ctx context.Context) error
}

func convertState(s app.State) State {
	switch s {
	case app.StateStopped:
		return StateStopped
	case app.StateStarting:
		return StateStarting
	case app.StateRunning:
		return StateRunning
	case app.StateStopping:
		return StateStopping
	case app.StateCrashed:
		return StateCrashed
	default:
		return StateStopped
	}
}

func toAppState(s State) app.State {
	switch s {
	case StateStarting:
		return app.StateStarting
	case StateRunning:
		return app.StateRunning
	case StateStopping:
		return app.StateStopping
	case StateCrashed:
		return app.StateCrashed
	default:
		return app.StateStopped
	}
}

// eventEmitter adapts EventHandler to the internal observer interfaces.
type eventEmitter struct {
	handler EventHandler
}

func (e *eventEmitter) OnStateChange(previous, current app.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: convertState(previous),
		Current:  convertState(current),
		Reason:   reason,
	})
}

func (e *eventEmitter) onDrain(report app.DrainReport) {
	if e.handler == nil {
		return
	}
	e.handler.OnDrain(report)
}
