// Package call provides the transparent call wrapper.
//
// A Wrapper runs device methods through an ICaller and hands back plain values.
// With a bridge.Bridge as caller the commands run in-process on the executor, with
// an rpc/client RemoteCaller they run on a remote device server; the calling code is
// the same in both cases.
//
//	w := call.NewWrapper("psu", b)
//	v, err := w.Invoke(ctx, "GetVoltage")
//	if call.IsFailure(v) { ... }
//
// Failed commands return the Failure sentinel (NaN) instead of an error, matching
// how readings with gaps are stored. Only a command that was not executed at all
// (timeout, transport error) returns an error.
package call
