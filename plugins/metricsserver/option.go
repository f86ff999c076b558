package metricsserver

import "github.com/bft-labs/fieldsync/pkg/fieldsync"

// WithMetricsServer returns a fieldsync Option that serves metrics while the
// service runs.
//
// Usage:
//
//	reg := prometheus.NewRegistry()
//	svc, err := fieldsync.New(cfg,
//	    fieldsync.WithMetrics(collector),
//	    metricsserver.WithMetricsServer(metricsserver.Config{
//	        Addr:     ":9464",
//	        Gatherer: reg,
//	    }),
//	)
func WithMetricsServer(cfg Config) fieldsync.Option {
	return fieldsync.WithPlugin(New(cfg))
}
