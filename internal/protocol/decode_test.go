package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/browsergate/gateway/internal/gatewayerr"
)

func decodeFrame(t *testing.T, frame string) (Command, error) {
	t.Helper()
	env, err := DecodeEnvelope([]byte(frame))
	require.NoError(t, err)
	return Decode(env)
}

func TestDecodeNavigate(t *testing.T) {
	cmd, err := decodeFrame(t, `{"id":"1","method":"navigate","session_id":"s1","url":"https://example.com"}`)
	require.NoError(t, err)
	require.NotNil(t, cmd.Navigate)
	assert.Equal(t, "https://example.com", cmd.Navigate.URL)
	assert.Equal(t, WaitUntilLoad, cmd.Navigate.WaitUntil)
}

func TestDecodeNavigateMissingURL(t *testing.T) {
	_, err := decodeFrame(t, `{"id":"1","method":"navigate","session_id":"s1"}`)
	require.Error(t, err)
	ge := gatewayerr.AsGatewayError(err)
	assert.Equal(t, gatewayerr.CodeInvalidCommand, ge.ErrorCode())
}

func TestDecodeExtractRequiresAttributeName(t *testing.T) {
	_, err := decodeFrame(t, `{"id":"1","method":"extract","session_id":"s1","selector":"a","kind":"attribute"}`)
	require.Error(t, err)
}

func TestDecodeUnknownMethod(t *testing.T) {
	_, err := decodeFrame(t, `{"id":"1","method":"teleport","session_id":"s1"}`)
	require.Error(t, err)
	ge := gatewayerr.AsGatewayError(err)
	assert.Equal(t, gatewayerr.CodeInvalidCommand, ge.ErrorCode())
}

func TestDecodeMissingID(t *testing.T) {
	_, err := DecodeEnvelope([]byte(`{"method":"navigate"}`))
	require.Error(t, err)
}

func TestDecodeClickDefaults(t *testing.T) {
	cmd, err := decodeFrame(t, `{"id":"1","method":"click","session_id":"s1","selector":"button"}`)
	require.NoError(t, err)
	assert.Equal(t, ButtonLeft, cmd.Click.Button)
	assert.Equal(t, 1, cmd.Click.Count)
}

func TestDecodeWaitElementRequiresSelector(t *testing.T) {
	_, err := decodeFrame(t, `{"id":"1","method":"wait","session_id":"s1","condition":"visible"}`)
	require.Error(t, err)
}

func TestFingerprintStableAcrossCalls(t *testing.T) {
	cmd, err := decodeFrame(t, `{"id":"1","method":"extract","session_id":"s1","selector":"h1","kind":"text"}`)
	require.NoError(t, err)

	a := Fingerprint("s1", cmd)
	b := Fingerprint("s1", cmd)
	assert.Equal(t, a, b)

	c := Fingerprint("s2", cmd)
	assert.NotEqual(t, a, c)
}
