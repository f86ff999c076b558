package ports

import "github.com/bft-labs/fieldsync/pkg/log"

// Logger provides structured logging.
type Logger = log.Logger

// Field is a structured log key/value pair.
type Field = log.Field

// Field constructors re-exported for the application layer.
var (
	String   = log.String
	Int      = log.Int
	Int64    = log.Int64
	Bool     = log.Bool
	Strings  = log.Strings
	Duration = log.Duration
	Err      = log.Err
	Any      = log.Any
)
