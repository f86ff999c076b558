// Package connectivity provides ports.ConnectivitySignal implementations:
// a manually driven switch, a periodic TCP probe of the record service, and
// a marker file watched with fsnotify.
package connectivity
