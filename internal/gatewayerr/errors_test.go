package gatewayerr

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInternalClientMessageOmitsCause(t *testing.T) {
	cause := errors.New("script exception: TypeError: cannot read property 'x' of null")
	ge := NewInternal(cause)

	assert.Contains(t, ge.Error(), "TypeError")
	assert.NotContains(t, ge.ClientMessage(), "TypeError")
	assert.Equal(t, "internal error", ge.ClientMessage())
}

func TestTimeoutClientMessageOmitsCause(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.1:9222: connect: connection refused")
	ge := NewTimeout("navigate", cause)

	assert.Contains(t, ge.Error(), "10.0.0.1")
	assert.NotContains(t, ge.ClientMessage(), "10.0.0.1")
}

func TestErrorTypeIsStableNotReflective(t *testing.T) {
	ge := NewInternal(errors.New("boom"))
	assert.Equal(t, "internal", ge.ErrorType())
	assert.False(t, strings.HasPrefix(ge.ErrorType(), "*"))
}

func TestAsGatewayErrorWrapsPlainError(t *testing.T) {
	ge := AsGatewayError(errors.New("unexpected"))
	assert.Equal(t, CodeInternal, ge.ErrorCode())
	assert.Equal(t, "internal", ge.ErrorType())
}
