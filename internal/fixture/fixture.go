// Package fixture turns command line flags into guardian sets and signed VAAs.
package fixture

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/wormholelabs-xyz/wormhole-svm-test/guardian"
	"github.com/wormholelabs-xyz/wormhole-svm-test/spy"
	"github.com/wormholelabs-xyz/wormhole-svm-test/vaa"
)

// GuardianFlags selects a guardian set.
type GuardianFlags struct {
	Count            int
	Seed             uint64
	GuardianSetIndex uint32
}

// AddGuardianFlags registers --count, --seed and --guardian-set-index.
func AddGuardianFlags(fs *pflag.FlagSet) {
	fs.Int("count", 0, "Number of generated guardians (0 uses the default devnet guardian)")
	fs.Uint64("seed", 0, "Seed for guardian key generation")
	fs.Uint32("guardian-set-index", 0, "Guardian set index")
}

func GuardianFlagsFrom(fs *pflag.FlagSet) (GuardianFlags, error) {
	var g GuardianFlags
	var err error
	if g.Count, err = fs.GetInt("count"); err != nil {
		return g, err
	}
	if g.Seed, err = fs.GetUint64("seed"); err != nil {
		return g, err
	}
	if g.GuardianSetIndex, err = fs.GetUint32("guardian-set-index"); err != nil {
		return g, err
	}
	return g, nil
}

// Set returns the selected guardian set.
func (g GuardianFlags) Set() (*guardian.Set, error) {
	if g.Count == 0 {
		return guardian.DefaultSet(), nil
	}
	return guardian.Generate(g.Count, g.Seed)
}

// Recipe describes a VAA to build and sign.
type Recipe struct {
	Guardians        GuardianFlags
	EmitterChain     uint16
	EmitterAddress   string
	Sequence         uint64
	Nonce            uint32
	Timestamp        uint32
	ConsistencyLevel uint8
	Payload          []byte
	Signers          []uint // all guardians when empty
}

// AddRecipeFlags registers the guardian flags plus the VAA body flags.
func AddRecipeFlags(fs *pflag.FlagSet) {
	AddGuardianFlags(fs)
	fs.Uint16("emitter-chain", uint16(vaa.ChainIDSolana), "Emitter chain ID")
	fs.String("emitter-address", strings.Repeat("ab", 32), "Emitter address (hex, left padded to 32 bytes)")
	fs.Uint64("sequence", 0, "Sequence number")
	fs.Uint32("nonce", 0, "Nonce")
	fs.Uint32("timestamp", 0, "Timestamp (unix seconds)")
	fs.Uint8("consistency-level", vaa.DefaultConsistencyLevel, "Consistency level")
	fs.String("payload", "", "Payload (hex)")
	fs.UintSlice("signers", nil, "Guardian indices to sign with (default: all)")
}

func RecipeFrom(fs *pflag.FlagSet) (Recipe, error) {
	var r Recipe
	var err error

	if r.Guardians, err = GuardianFlagsFrom(fs); err != nil {
		return r, err
	}
	if r.EmitterChain, err = fs.GetUint16("emitter-chain"); err != nil {
		return r, err
	}
	if r.EmitterAddress, err = fs.GetString("emitter-address"); err != nil {
		return r, err
	}
	if r.Sequence, err = fs.GetUint64("sequence"); err != nil {
		return r, err
	}
	if r.Nonce, err = fs.GetUint32("nonce"); err != nil {
		return r, err
	}
	if r.Timestamp, err = fs.GetUint32("timestamp"); err != nil {
		return r, err
	}
	if r.ConsistencyLevel, err = fs.GetUint8("consistency-level"); err != nil {
		return r, err
	}
	if r.Signers, err = fs.GetUintSlice("signers"); err != nil {
		return r, err
	}

	payload, err := fs.GetString("payload")
	if err != nil {
		return r, err
	}
	if r.Payload, err = hex.DecodeString(strings.TrimPrefix(payload, "0x")); err != nil {
		return r, fmt.Errorf("invalid payload: %w", err)
	}

	return r, nil
}

// Build returns the signed VAA and the set that signed it.
func (r Recipe) Build() (vaa.VAA, *guardian.Set, error) {
	set, err := r.Guardians.Set()
	if err != nil {
		return vaa.VAA{}, nil, err
	}

	emitter, err := spy.ParseEmitterAddress(r.EmitterAddress)
	if err != nil {
		return vaa.VAA{}, nil, err
	}

	unsigned, err := vaa.Build(vaa.ChainID(r.EmitterChain), emitter[:], r.Sequence, r.Payload,
		vaa.WithNonce(r.Nonce),
		vaa.WithTimestamp(r.Timestamp),
		vaa.WithConsistencyLevel(r.ConsistencyLevel))
	if err != nil {
		return vaa.VAA{}, nil, err
	}

	if len(r.Signers) == 0 {
		signed, err := unsigned.Sign(set, r.Guardians.GuardianSetIndex)
		return signed, set, err
	}

	indices := make([]uint8, len(r.Signers))
	for i, s := range r.Signers {
		if s > guardian.MaxSetSize {
			return vaa.VAA{}, nil, fmt.Errorf("%w: %d", guardian.ErrIndexOutOfRange, s)
		}
		indices[i] = uint8(s)
	}
	signed, err := unsigned.SignWith(set, r.Guardians.GuardianSetIndex, indices)
	return signed, set, err
}
