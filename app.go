// Package workshop is the device operation orchestration service
package workshop

const (
	// Name identifies the service in logs and telemetry
	Name = "device-workshop"

	// Version is the service release version
	Version = "0.4.0"
)
