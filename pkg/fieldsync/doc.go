// Package fieldsync provides an embeddable offline-aware mutation queue.
//
// A Service performs record mutations against a remote service when it can
// and saves them for later when it cannot. Saved mutations survive restarts
// and are replayed, in order and at most MaxRetries times, when connectivity
// returns.
//
// # Basic Usage
//
//	svc, err := fieldsync.New(fieldsync.Config{
//	    ServiceURL: "https://records.example.com",
//	    AuthKey:    "your-api-key",
//	    StateDir:   "/var/lib/fieldsync",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := svc.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Stop()
//
//	res := svc.Execute(ctx, fieldsync.Request{
//	    Kind:        fieldsync.Kind{Action: fieldsync.ActionCreate, Entity: "stationControl"},
//	    Payload:     []byte(`{"station":4,"state":"open"}`),
//	    Description: "Open station 4",
//	})
//	if res.Queued {
//	    // saved, will be replayed when back online
//	}
//
// # Connectivity
//
// Without [WithConnectivitySignal] the service assumes it is online and
// relies on error classification alone: requests that fail with connectivity
// errors are queued and retried on a timer. Pass a signal to get immediate
// replay on reconnect.
//
// # Handlers
//
// Mutations go to the remote store unless a handler is registered for their
// kind with [WithHandler]. Handlers see the full pending operation, including
// its idempotency key, and must be idempotent per key.
//
// # Lifecycle States
//
// A Service is in one of [StateStopped], [StateStarting], [StateRunning],
// [StateStopping] or [StateCrashed]. Use [Service.Status] to query it.
package fieldsync
