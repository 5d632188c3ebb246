package device

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// Snapshot keys served by query requests
const (
	KeyReadValue    = "ReadValue"
	KeyVerification = "verification"
	KeyInfo         = "info"
)

// Snapshot is the latest known state of a device. It is read by the server for
// query and info requests, so those never touch the device itself.
// A Snapshot is safe for concurrent use.
type Snapshot struct {
	values *xsync.MapOf[string, any]
}

// NewSnapshot creates an empty snapshot
func NewSnapshot() *Snapshot {
	return &Snapshot{values: xsync.NewMapOf[string, any]()}
}

// Set stores a value, nil removes the key
func (s *Snapshot) Set(key string, value any) {
	if value == nil {
		s.values.Delete(key)
		return
	}
	s.values.Store(key, value)
}

// Get returns the value stored for key, ok is false for unknown or empty keys
func (s *Snapshot) Get(key string) (any, bool) {
	return s.values.Load(key)
}

// Info returns the static device info
func (s *Snapshot) Info() (any, bool) {
	return s.Get(KeyInfo)
}

// Keys returns all stored keys
func (s *Snapshot) Keys() []string {
	keys := make([]string, 0, s.values.Size())
	s.values.Range(func(key string, _ any) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}
