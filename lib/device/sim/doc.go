// Package sim provides a simulated power supply driver. It stands in for real
// instrument drivers in tests, demos and the default `sockdev serve` setup.
//
// Besides the supply operations the method table contains Fail(message), which
// always returns an error, and Sleep(seconds), which blocks the executor. Both are
// used to exercise the exception and timeout paths of the server.
//
// Example profile:
//
//	name: psu
//	model: SIM-PSU-30
//	serial: "0001"
//	max_voltage: 30
//	load_ohm: 100
//	noise_volt: 0.01
package sim
