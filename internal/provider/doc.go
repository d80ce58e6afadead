// Package provider adapts device tools to a single action interface
//
// Each provider runs one kind of backend: the ADB and Fastboot binaries, the
// libimobiledevice tool family, or a remote device agent over HTTP. The
// executor resolves providers by name through a Registry and never branches
// on which tool sits behind a name
package provider
