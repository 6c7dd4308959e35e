// Package preflight provides health checks for the paths and storage that
// michatta depends on.
//
// The CLI "michatta doctor" command runs RunAll and renders each Result;
// the daemon runs CheckDataDir before opening the store and logs a warning
// when free space is low.
package preflight
