// Package notify provides ports.NotificationSink implementations: a log
// sink, an MQTT publisher for remote dashboards, and a fan-out.
package notify
