package device

// IDriver is the interface of a device driver owned by the executor.
// Drivers are not required to be safe for concurrent use, the executor is the
// only goroutine calling them.
type IDriver interface {
	// Name returns the device name
	Name() string

	// Verification returns a string identifying the connected hardware
	Verification() string

	// Info returns static, json serializable device information
	Info() map[string]any

	// Methods returns the table of callable device operations
	Methods() *Table

	// Close releases the device
	Close() error
}

// InitSnapshot stores the static driver values in the snapshot
func InitSnapshot(s *Snapshot, d IDriver) {
	s.Set(KeyVerification, d.Verification())
	s.Set(KeyInfo, d.Info())
}
