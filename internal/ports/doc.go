// Package ports defines the interfaces (ports) that connect the application
// layer to infrastructure adapters.
//
// Ports are the boundaries between the application core and the outside
// world. They define what the queue needs from external systems without
// specifying how those needs are fulfilled.
//
// # Port Interfaces
//
//   - [RemoteStore]: performs a mutation against the remote record service
//   - [LocalPersistence]: durable string key/value storage for the queue
//   - [ConnectivitySignal]: platform online/offline notifications
//   - [NotificationSink]: operator-facing notices
//   - [Logger]: structured logging abstraction
//   - [HTTPClient]: HTTP request abstraction for dependency injection
//
// The application layer (internal/app) depends only on these interfaces.
// Adapters (internal/adapters) provide the file, redis, sqlite, HTTP, MQTT
// and zerolog implementations.
package ports
