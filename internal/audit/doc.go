// Package audit delivers audit records for gate decisions, lock decisions,
// step outcomes, and execution results to log and blob storage sinks
package audit
