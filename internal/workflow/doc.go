// Package workflow loads and validates workflow manifests
//
// A manifest is checked against an embedded JSON schema, then every
// definition is checked structurally and against the action catalog and the
// known policy gates. The resulting Registry is immutable and safe for
// concurrent readers
package workflow
