//go:build windows

package cmd

import (
	"os"
	"os/exec"
	"syscall"
)

// setDaemonAttrs is a no-op on Windows (no Setsid equivalent).
func setDaemonAttrs(_ *exec.Cmd) {}

// shutdownSignals stop a foreground server gracefully.
func shutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

// sigTERM returns SIGKILL: os.Process.Signal only delivers Kill on
// Windows, so serve stop cannot ask politely.
func sigTERM() syscall.Signal { return syscall.SIGKILL }

// sigKILL forces a background server to exit.
func sigKILL() syscall.Signal { return syscall.SIGKILL }
