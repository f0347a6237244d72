// Package version contains version information.
package version

// Version is the exphost version.
const Version = "0.1.0"
