//go:build !windows

package engine

import (
	"os/exec"
	"syscall"
	"time"
)

// setProcGroup puts the browser in its own process group so a recycle can
// kill the whole tree (renderer/GPU helper processes included) without
// taking down the gateway itself.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killByPid(pid int) {
	syscall.Kill(-pid, syscall.SIGKILL)
}

func isProcessAlive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}

func waitForProcessesDead(pids []int, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		allDead := true
		for _, pid := range pids {
			if isProcessAlive(pid) {
				allDead = false
				break
			}
		}
		if allDead {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func platformChromeArgs() []string {
	return nil
}
