// Package domain contains the core entities and value objects for fieldsync.
//
// This package is the innermost layer of the architecture. It has no
// dependencies on infrastructure concerns (HTTP, storage, logging) and holds
// only the data model of the offline mutation queue.
//
// # Entities
//
//   - [PendingOperation]: a deferred remote write waiting in the retry queue
//   - [Kind]: the (action, entity) descriptor that selects a replay handler
//   - [ConnectionState]: the process-wide online/syncing snapshot
//   - [Result]: the outcome handed back to a caller of a guarded operation
//
// # Errors
//
// Remote failures are classified into [ErrConnectivity] (retry later) and
// [LogicalError] (the service understood and rejected the request).
package domain
