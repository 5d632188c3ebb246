/*
Package device contains the device model shared by the bridge, the executor and the
RPC layers.

A command is a typed method invocation (Command) with a deterministic text form:

	SetVoltage(5.0)
	Configure("ch1", limit=2.5, enabled=true)

Commands arrive on the wire as text and are converted with ParseCommand. The text is
parsed, never evaluated, and a driver only exposes the methods registered in its Table.

Executing a command yields a Result, which travels as the tuple

	[timestamp_seconds, command_text, value]

Failures are data, not errors: an execution error becomes the value "Exception: <msg>"
and a command that was not executed in time becomes "not executed, <T>s timeout".

The Snapshot holds the latest known device state (keys ReadValue, verification and
info) and is what query and info requests read.
*/
package device
