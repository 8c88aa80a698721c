// Package registry defines the contract of the monitor's long-running loops.
package registry

// Service is a background loop that can be started once and stopped.
// Stop blocks until the loop has exited.
type Service interface {
	Start() error
	Stop() error
}
