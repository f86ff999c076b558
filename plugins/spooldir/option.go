package spooldir

import "github.com/bft-labs/fieldsync/pkg/fieldsync"

// WithSpoolDir returns a fieldsync Option that picks up requests dropped into
// a directory.
//
// Usage:
//
//	svc, err := fieldsync.New(cfg,
//	    spooldir.WithSpoolDir(spooldir.Config{Dir: "/var/spool/fieldsync"}),
//	)
func WithSpoolDir(cfg Config) fieldsync.Option {
	return fieldsync.WithPlugin(New(cfg))
}
