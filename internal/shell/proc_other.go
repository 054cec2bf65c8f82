//go:build !unix

package shell

import "os/exec"

func configureProcess(cmd *exec.Cmd) {}
