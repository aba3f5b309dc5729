package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/browsergate/gateway/internal/engine"
)

func TestDiffDetectsURLChange(t *testing.T) {
	before := engine.PageInfo{URL: "https://a.example", Title: "A", ElementHash: "10"}
	after := engine.PageInfo{URL: "https://b.example", Title: "A", ElementHash: "10"}

	d := diff(before, after)
	assert.True(t, d.URLChanged)
	assert.False(t, d.TitleChanged)
	assert.False(t, d.ElementsChanged)
	assert.True(t, d.Changed())
}

func TestDiffNoChange(t *testing.T) {
	before := engine.PageInfo{URL: "https://a.example", Title: "A", ElementHash: "10"}
	after := before

	d := diff(before, after)
	assert.False(t, d.Changed())
}

func TestWaitUntilToEngine(t *testing.T) {
	assert.Equal(t, "complete", waitUntilToEngine("load"))
	assert.Equal(t, "interactive", waitUntilToEngine("dom-content-loaded"))
	assert.Equal(t, "complete", waitUntilToEngine("network-idle"))
	assert.Equal(t, "complete", waitUntilToEngine(""))
}

func TestTruthy(t *testing.T) {
	assert.False(t, truthy(`{"result":null}`))
	assert.False(t, truthy(`{"result":false}`))
	assert.False(t, truthy(`{"result":""}`))
	assert.True(t, truthy(`{"result":"yes"}`))
	assert.True(t, truthy(`{"result":true}`))
	assert.False(t, truthy(`not-json`))
}
