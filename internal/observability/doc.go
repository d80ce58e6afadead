// Package observability holds the Prometheus collectors and OpenTelemetry
// tracer setup shared by the engine and the HTTP server
package observability
