package domain

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "didhub/pkg/domain-errors"
)

func TestParseDID(t *testing.T) {
	t.Run("accepts a well-formed DID", func(t *testing.T) {
		did, err := ParseDID("did:ethr:sepolia:0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
		require.NoError(t, err)
		assert.Equal(t, "sepolia", did.Network())
		assert.Equal(t, common.HexToAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"), did.Identity())
	})

	t.Run("normalizes the address to its checksummed form", func(t *testing.T) {
		did, err := ParseDID("did:ethr:sepolia:0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
		require.NoError(t, err)
		assert.Equal(t, "did:ethr:sepolia:0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", did.String())
	})

	t.Run("round-trips through NewDID", func(t *testing.T) {
		addr := common.HexToAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
		did := NewDID("mainnet", addr)

		parsed, err := ParseDID(did.String())
		require.NoError(t, err)
		assert.Equal(t, did, parsed)
	})

	t.Run("rejects malformed input", func(t *testing.T) {
		for _, input := range []string{
			"",
			"did:ethr:sepolia",
			"did:web:example.com",
			"did:ethr:sepolia:not-an-address",
			"urn:ethr:sepolia:0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		} {
			_, err := ParseDID(input)
			require.Error(t, err, "input %q", input)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput), "input %q", input)
		}
	})
}

func TestParseAddress(t *testing.T) {
	t.Run("accepts a CID", func(t *testing.T) {
		addr, err := ParseAddress("bafkreigh2akiscaildcqabsyg3dfr6chu3fgpregiymsck7e7aqa4s52zy")
		require.NoError(t, err)
		assert.False(t, addr.IsZero())
	})

	t.Run("rejects non-CID input", func(t *testing.T) {
		for _, input := range []string{"", "not-a-cid", "Qm"} {
			_, err := ParseAddress(input)
			require.Error(t, err, "input %q", input)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput), "input %q", input)
		}
	})
}
