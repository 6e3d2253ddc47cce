//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package model

import "os/exec"

// killProcessGroupOnCancel keeps the default kill of the direct child;
// waitDelay still bounds the wait on inherited pipes.
func killProcessGroupOnCancel(*exec.Cmd) {}
