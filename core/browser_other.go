//go:build !unix

package core

import "os/exec"

func setProcessGroup(*exec.Cmd) {}

func processGroup(*exec.Cmd) int { return 0 }

func terminate(cmd *exec.Cmd, _ int) error {
	return cmd.Process.Kill()
}

func kill(cmd *exec.Cmd, _ int) error {
	return cmd.Process.Kill()
}
