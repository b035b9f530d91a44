//go:build !windows

package cmd

import (
	"os"
	"os/exec"
	"syscall"
)

// setDaemonAttrs puts the background server in its own session so it
// outlives the terminal that started it.
func setDaemonAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

// shutdownSignals stop a foreground server gracefully.
func shutdownSignals() []os.Signal {
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP}
}

// sigTERM asks a background server to shut down.
func sigTERM() syscall.Signal { return syscall.SIGTERM }

// sigKILL forces a background server to exit.
func sigKILL() syscall.Signal { return syscall.SIGKILL }
