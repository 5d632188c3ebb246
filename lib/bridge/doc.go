/*
Package bridge implements the command bridge between request handlers and the
single device executor.

	producers (event loop, wrappers, pollers)
	    │ Enqueue(cmd) ─────────► Queue (lock-free MPSC, FIFO) ─► Recv() ─► executor
	    │                                                                     │
	    └─ Pending.Done() ◄── result table (correlation id → Pending) ◄── Publish(id, result)

Every enqueued command gets a correlation id from a monotonic sequence. The waiter
keeps the returned Pending; the executor publishes exactly one result per id. A waiter
that gives up calls Abandon, the late result is then dropped instead of leaking.

Listeners registered with Notify are signaled after each publish, which lets an event
loop re-check its pending replies without polling.

Bridge implements call.ICaller, so a call.Wrapper can run commands in-process.
*/
package bridge
