// Package log provides the logging abstraction used by fieldsync components.
//
// This package defines a Logger interface that can be implemented by any
// logging library. A zerolog adapter and a no-op logger are provided.
//
// # Usage
//
// Build a zerolog logger from level/format/output settings and wrap it:
//
//	zl, closer, err := log.NewZerolog(log.Options{Level: "info", Format: "console"})
//	if err != nil { ... }
//	if closer != nil { defer closer.Close() }
//	logger := log.NewZerologAdapterWithLogger(zl)
//
// Or discard everything, which is the library default:
//
//	logger := log.NewNoopLogger()
//
// # Custom Loggers
//
// Implement the Logger interface to integrate with an existing logging stack:
//
//	func (l *MyLogger) Debug(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Info(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Warn(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Error(msg string, fields ...log.Field) { ... }
package log
