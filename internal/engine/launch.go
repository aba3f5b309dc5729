package engine

import (
	"bufio"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"
)

// LaunchOptions configures a spawned browser process.
type LaunchOptions struct {
	// ExecutablePath is the browser binary to run. Empty selects a
	// platform default resolved by the caller's config.
	ExecutablePath string
	Headless       bool
	UserDataDir    string
	ExtraArgs      []string
	StartTimeout   time.Duration
}

// LaunchResult is a running browser process and its BiDi endpoint.
type LaunchResult struct {
	Pid         int
	Endpoint    string
	cmd         *exec.Cmd
	killOnce    sync.Once
	stderrLines []string
}

var devtoolsListeningPattern = regexp.MustCompile(`^DevTools listening on (ws://\S+)$`)

// Launch starts a browser process with BiDi/DevTools remote access enabled
// and waits for it to announce its WebSocket endpoint on stderr, handing
// the endpoint back to the pool rather than wiring it into a single
// hard-coded session.
func Launch(opts LaunchOptions) (*LaunchResult, error) {
	args := []string{
		"--remote-debugging-port=0",
		"--no-first-run",
		"--no-default-browser-check",
	}
	if opts.Headless {
		args = append(args, "--headless=new")
	}
	if opts.UserDataDir != "" {
		args = append(args, "--user-data-dir="+opts.UserDataDir)
	}
	args = append(args, platformChromeArgs()...)
	args = append(args, opts.ExtraArgs...)

	cmd := exec.Command(opts.ExecutablePath, args...)
	setProcGroup(cmd)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("attach stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start browser process: %w", err)
	}

	timeout := opts.StartTimeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}

	endpoint, lines, err := waitForEndpoint(stderr, timeout)
	if err != nil {
		cmd.Process.Kill()
		cmd.Wait()
		return nil, fmt.Errorf("browser did not announce a debugging endpoint: %w", err)
	}

	return &LaunchResult{
		Pid:         cmd.Process.Pid,
		Endpoint:    endpoint,
		cmd:         cmd,
		stderrLines: lines,
	}, nil
}

func waitForEndpoint(stderr interface{ Read([]byte) (int, error) }, timeout time.Duration) (string, []string, error) {
	type result struct {
		endpoint string
		lines    []string
		err      error
	}
	done := make(chan result, 1)

	go func() {
		scanner := bufio.NewScanner(stderr)
		var lines []string
		for scanner.Scan() {
			line := scanner.Text()
			lines = append(lines, line)
			if m := devtoolsListeningPattern.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
				done <- result{endpoint: m[1], lines: lines}
				return
			}
		}
		done <- result{err: fmt.Errorf("stderr closed before endpoint was announced"), lines: lines}
	}()

	select {
	case r := <-done:
		return r.endpoint, r.lines, r.err
	case <-time.After(timeout):
		return "", nil, fmt.Errorf("timed out after %s", timeout)
	}
}

// Kill terminates the browser process tree and blocks until it is gone or
// the grace period elapses.
func (r *LaunchResult) Kill(grace time.Duration) {
	r.killOnce.Do(func() {
		killByPid(r.Pid)
		waitForProcessesDead([]int{r.Pid}, grace)
	})
}

// Alive reports whether the browser process is still running.
func (r *LaunchResult) Alive() bool {
	return isProcessAlive(r.Pid)
}
