package fieldsync

import (
	"fmt"
	"strings"
	"time"

	"github.com/bft-labs/fieldsync/internal/app"
	"github.com/bft-labs/fieldsync/internal/domain"
)

// Config holds the settings of a Service.
type Config struct {
	// ServiceURL is the record service base URL. Required unless a remote
	// store is supplied with WithRemoteStore.
	ServiceURL string
	AuthKey    string
	// Hostname is sent with every request. Default: os.Hostname()
	Hostname string

	// StateDir holds the queue file. Required unless WithPersistence is used.
	StateDir string
	// QueueKey is the persistence key of the queue. Default: "fieldsync.queue"
	QueueKey string

	// MaxRetries bounds replay attempts per operation. Default: 3
	MaxRetries int
	// RetryDelay is the wait before an automatic retry pass. Default: 5s
	RetryDelay time.Duration
	// MaxRetryDelay lets the retry delay double after passes that make no
	// progress, up to this cap. Zero keeps it fixed.
	MaxRetryDelay time.Duration
	// ReplayRate caps replays per second. Zero means unlimited.
	ReplayRate  float64
	ReplayBurst int

	// HTTPTimeout applies to the default HTTP client. Default: 15s
	HTTPTimeout time.Duration
}

// SetDefaults fills zero fields with default values.
func (c *Config) SetDefaults() {
	if c.QueueKey == "" {
		c.QueueKey = app.DefaultQueueKey
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = app.DefaultMaxRetries
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = app.DefaultRetryDelay
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = 15 * time.Second
	}
	if c.Hostname == "" {
		c.Hostname = hostname()
	}
	c.ServiceURL = strings.TrimRight(c.ServiceURL, "/")
}

// Validate checks values that do not depend on options.
func (c Config) Validate() error {
	if c.MaxRetries < 1 {
		return fmt.Errorf("%w: max retries must be at least 1", domain.ErrInvalidConfig)
	}
	if c.RetryDelay < 0 || c.MaxRetryDelay < 0 {
		return fmt.Errorf("%w: retry delays must not be negative", domain.ErrInvalidConfig)
	}
	if c.ReplayRate < 0 {
		return fmt.Errorf("%w: replay rate must not be negative", domain.ErrInvalidConfig)
	}
	return nil
}
