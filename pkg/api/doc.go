// Package api defines the core data types shared across the orchestrator
//
// This package contains workflow definitions, execution results, device
// locks, policy gate results, progress jobs and wire messages, audit records,
// and the HTTP request and response bodies of the control surface
package api
