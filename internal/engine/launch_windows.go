//go:build windows

package engine

import (
	"bytes"
	"fmt"
	"os/exec"
	"time"
)

// platformChromeArgs returns Windows-specific Chrome launch arguments.
// Chrome for Testing's sandbox cannot access its own executable when it
// lives under AppData due to Windows filesystem permission restrictions.
func platformChromeArgs() []string {
	return []string{"--no-sandbox"}
}

func setProcGroup(cmd *exec.Cmd) {
	// Windows doesn't use process groups the same way.
}

func killByPid(pid int) {
	exec.Command("taskkill", "/T", "/F", "/PID", fmt.Sprintf("%d", pid)).Run()
}

func isProcessAlive(pid int) bool {
	out, err := exec.Command("tasklist", "/FI", fmt.Sprintf("PID eq %d", pid), "/FO", "CSV", "/NH").Output()
	if err != nil {
		return false
	}
	return len(out) > 0 && bytes.Contains(out, []byte(fmt.Sprintf("%d", pid)))
}

func waitForProcessesDead(pids []int, timeout time.Duration) {
	time.Sleep(50 * time.Millisecond)

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
		time.Sleep(100 * time.Millisecond)
	}
}
