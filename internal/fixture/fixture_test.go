package fixture

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wormholelabs-xyz/wormhole-svm-test/guardian"
	"github.com/wormholelabs-xyz/wormhole-svm-test/vaa"
)

func parse(t *testing.T, args ...string) Recipe {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddRecipeFlags(fs)
	require.NoError(t, fs.Parse(args))

	r, err := RecipeFrom(fs)
	require.NoError(t, err)
	return r
}

func TestDefaultRecipe(t *testing.T) {
	r := parse(t)
	v, set, err := r.Build()
	require.NoError(t, err)

	assert.Equal(t, 1, set.Len())
	assert.Equal(t, guardian.Default(0).Address(), set.Addresses()[0])

	body := v.Body()
	assert.Equal(t, vaa.ChainIDSolana, body.EmitterChain)
	assert.Equal(t, vaa.Address{0xab, 0xab, 0xab, 0xab, 0xab, 0xab, 0xab, 0xab, 0xab, 0xab, 0xab, 0xab, 0xab, 0xab, 0xab, 0xab,
		0xab, 0xab, 0xab, 0xab, 0xab, 0xab, 0xab, 0xab, 0xab, 0xab, 0xab, 0xab, 0xab, 0xab, 0xab, 0xab}, body.EmitterAddress)
	assert.Equal(t, uint8(1), body.ConsistencyLevel)
	assert.Empty(t, body.Payload)
	assert.NoError(t, v.Verify(set))
}

func TestRecipeFlags(t *testing.T) {
	r := parse(t,
		"--count", "13",
		"--seed", "12345",
		"--guardian-set-index", "2",
		"--emitter-chain", "2",
		"--emitter-address", "0xdeadbeef",
		"--sequence", "42",
		"--nonce", "7",
		"--timestamp", "1700000000",
		"--consistency-level", "15",
		"--payload", "0x01020304",
		"--signers", "8,0,4",
	)

	v, set, err := r.Build()
	require.NoError(t, err)
	assert.Equal(t, 13, set.Len())
	assert.Equal(t, uint32(2), v.GuardianSetIndex())
	assert.Equal(t, []uint8{0, 4, 8}, v.Signatures().Indices())
	assert.NoError(t, v.VerifySignatures(set))
	assert.ErrorIs(t, v.Verify(set), vaa.ErrNoQuorum)

	body := v.Body()
	assert.Equal(t, vaa.ChainIDEthereum, body.EmitterChain)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, body.EmitterAddress[28:])
	assert.Equal(t, uint64(42), body.Sequence)
	assert.Equal(t, uint32(7), body.Nonce)
	assert.Equal(t, uint32(1700000000), body.Timestamp)
	assert.Equal(t, uint8(15), body.ConsistencyLevel)
	assert.Equal(t, []byte{1, 2, 3, 4}, body.Payload)
}

func TestRecipeErrors(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddRecipeFlags(fs)
	require.NoError(t, fs.Parse([]string{"--payload", "zz"}))
	_, err := RecipeFrom(fs)
	assert.Error(t, err)

	r := parse(t, "--signers", "1")
	_, _, err = r.Build()
	assert.ErrorIs(t, err, guardian.ErrIndexOutOfRange)

	r = parse(t, "--signers", "300")
	_, _, err = r.Build()
	assert.ErrorIs(t, err, guardian.ErrIndexOutOfRange)

	r = parse(t, "--count", "256")
	_, _, err = r.Build()
	assert.ErrorIs(t, err, guardian.ErrTooManyGuardians)
}
