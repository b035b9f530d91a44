//go:build !windows

package daemon

import (
	"fmt"
	"syscall"
)

// IsRunning reports the record and whether its process is alive.
func (p *PIDFile) IsRunning() (Record, bool) {
	rec, err := p.Read()
	if err != nil {
		return Record{}, false
	}
	// Signal 0 tests if the process exists without sending a signal.
	err = syscall.Kill(rec.PID, 0)
	return rec, err == nil
}

// Signal sends the given signal to the recorded process.
func (p *PIDFile) Signal(sig syscall.Signal) error {
	rec, err := p.Read()
	if err != nil {
		return fmt.Errorf("read PID file: %w", err)
	}
	return syscall.Kill(rec.PID, sig)
}
