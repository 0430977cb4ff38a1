//go:build !linux && !darwin

package procmgr

import "os/exec"

func setProcAttrs(cmd *exec.Cmd) {}

func killProcessGroup(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
