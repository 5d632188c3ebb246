// Package server assembles a device server: transport event loop, command bridge,
// executor and device snapshot.
//
// Requests are handled by the device adapter:
//
//   - query <key>: answered from the snapshot (ReadValue, verification, info),
//     "No match for <key>." if the key is unknown or empty
//
//   - command <text>: parsed into a device.Command, queued on the bridge and
//     answered with the result tuple [timestamp, command, value] once the executor
//     published it, or with the value "not executed, <T>s timeout" after the
//     configured timeout. Unparseable commands are answered immediately with an
//     "Exception: ..." value.
//
//   - info: the static device info
//
//   - anything else: "invalid action <action>."
//
// The event loop never waits for the device: command replies are polled whenever
// the bridge publishes a result and on every select timeout tick.
//
// Optionally the server polls ReadValue periodically (ReadIntervalMillisecond) and
// exposes VictoriaMetrics counters on a prometheus endpoint (MetricsEndpoint).
package server
