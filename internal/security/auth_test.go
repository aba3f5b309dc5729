package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthenticatorDisabledWhenNoKey(t *testing.T) {
	a := NewAuthenticator("")
	assert.False(t, a.Required())
	assert.True(t, a.Check("anything"))
}

func TestAuthenticatorRejectsWrongKey(t *testing.T) {
	a := NewAuthenticator("secret")
	assert.True(t, a.Required())
	assert.False(t, a.Check("wrong"))
	assert.True(t, a.Check("secret"))
}

func TestAuthenticatorRejectsEmptyPresented(t *testing.T) {
	a := NewAuthenticator("secret")
	assert.False(t, a.Check(""))
}
