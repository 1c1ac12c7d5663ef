//go:build unix

package core

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func processGroup(cmd *exec.Cmd) int {
	pgid, err := unix.Getpgid(cmd.Process.Pid)
	if err != nil {
		return 0
	}
	return pgid
}

func terminate(cmd *exec.Cmd, pgid int) error {
	return signalGroup(cmd, pgid, unix.SIGTERM)
}

func kill(cmd *exec.Cmd, pgid int) error {
	return signalGroup(cmd, pgid, unix.SIGKILL)
}

func signalGroup(cmd *exec.Cmd, pgid int, sig unix.Signal) error {
	if pgid > 0 {
		if err := unix.Kill(-pgid, sig); err == nil {
			return nil
		}
	}
	return cmd.Process.Signal(sig)
}
