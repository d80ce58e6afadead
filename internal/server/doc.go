// Package server implements the operator control surface
//
// It exposes REST endpoints for workflows, executions, externally reported
// flash jobs, and device locks, plus a WebSocket progress feed
package server
