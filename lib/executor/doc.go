// Package executor runs queued device commands.
//
// An Executor is the single consumer of a bridge.Bridge and the sole owner of its
// device.IDriver. Serializing every device access through one goroutine gives
// mutual exclusion without locks in the drivers.
//
// Metrics (VictoriaMetrics, label device):
//
//	sockdev_executor_commands_total
//	sockdev_executor_exceptions_total
//	sockdev_executor_dropped_results_total
//	sockdev_executor_duration_seconds
//	sockdev_executor_queue_wait_seconds
package executor
