package engine

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitForEndpointParsesDevToolsLine(t *testing.T) {
	r, w := io.Pipe()
	go func() {
		w.Write([]byte("Starting up\n"))
		w.Write([]byte("DevTools listening on ws://127.0.0.1:9222/devtools/browser/abc-123\n"))
		w.Close()
	}()

	endpoint, lines, err := waitForEndpoint(r, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:9222/devtools/browser/abc-123", endpoint)
	assert.True(t, strings.Contains(strings.Join(lines, "\n"), "Starting up"))
}

func TestWaitForEndpointTimesOut(t *testing.T) {
	r, _ := io.Pipe()
	_, _, err := waitForEndpoint(r, 10*time.Millisecond)
	require.Error(t, err)
}

func TestBoxInfoCenter(t *testing.T) {
	b := BoxInfo{X: 10, Y: 20, Width: 100, Height: 50}
	cx, cy := b.Center()
	assert.Equal(t, 60.0, cx)
	assert.Equal(t, 45.0, cy)
}
