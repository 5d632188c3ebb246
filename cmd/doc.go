// Package cmd implements the command-line interface of sockdev. It provides
// commands for serving a device and for talking to a running device server.
//
// The package is organized into several subpackages:
//
//   - serve: Starts a device server for a simulated power supply profile
//   - device: Client commands (query, command, info), an interactive shell
//     and a latency benchmark
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See sockdev -help for a list of all commands.
package cmd
