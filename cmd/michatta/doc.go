// Package main hosts the michatta CLI entrypoint and command graph.
//
// Commands talk to a running michattad over its HTTP API when one answers and
// otherwise open the viewed store in-process, so every command works with or
// without the daemon.
package main
