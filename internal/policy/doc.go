// Package policy evaluates authorization gates before device operations run
package policy
