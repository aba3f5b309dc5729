package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckTextRejectsEventHandler(t *testing.T) {
	s := NewSanitizer(false)
	err := s.CheckSelector(`a onclick=alert(1)`)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "alert(1)")
}

func TestCheckTextRejectsScriptTag(t *testing.T) {
	s := NewSanitizer(false)
	require.Error(t, s.CheckText(`<script>evil()</script>`))
}

func TestCheckTextAllowsOrdinarySelector(t *testing.T) {
	s := NewSanitizer(false)
	require.NoError(t, s.CheckSelector(`div.card > button#submit`))
}

func TestNormalizeURLRejectsNonHTTP(t *testing.T) {
	s := NewSanitizer(false)
	_, err := s.NormalizeURL("file:///etc/passwd")
	require.Error(t, err)
}

func TestNormalizeURLAllowsNonHTTPWhenConfigured(t *testing.T) {
	s := NewSanitizer(true)
	out, err := s.NormalizeURL("about:blank")
	require.NoError(t, err)
	assert.Equal(t, "about:blank", out)
}

func TestNormalizeURLRejectsJavascriptScheme(t *testing.T) {
	s := NewSanitizer(true)
	_, err := s.NormalizeURL("javascript:alert(1)")
	require.Error(t, err)
}

func TestNormalizeURLAcceptsHTTPS(t *testing.T) {
	s := NewSanitizer(false)
	out, err := s.NormalizeURL("https://example.com/path")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/path", out)
}
