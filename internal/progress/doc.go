// Package progress tracks long-running jobs and fans their progress out to
// live subscribers such as WebSocket clients and an MQTT broker
package progress
