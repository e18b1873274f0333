package content

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "didhub/pkg/domain-errors"
)

func TestComputeAddressIsDeterministic(t *testing.T) {
	a, err := ComputeAddress([]byte("stable payload"))
	require.NoError(t, err)
	b, err := ComputeAddress([]byte("stable payload"))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	// CIDv1 in default base32 encoding.
	assert.True(t, strings.HasPrefix(a.String(), "b"), "expected base32 CIDv1, got %s", a)
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	addr, err := ComputeAddress([]byte("original"))
	require.NoError(t, err)

	require.NoError(t, Verify(addr, []byte("original")))

	err = Verify(addr, []byte("tampered"))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeDocumentUnavailable))
}
