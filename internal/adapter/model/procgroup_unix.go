//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package model

import (
	"os/exec"
	"syscall"
)

// killProcessGroupOnCancel starts the model in its own process group and
// kills the whole group on timeout, so wrapper scripts do not leave the
// real model running with stdout open.
func killProcessGroupOnCancel(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
