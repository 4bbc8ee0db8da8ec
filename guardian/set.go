package guardian

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
)

// MaxSetSize is the largest guardian set a VAA can carry signatures for; the
// signature count is a single byte on the wire.
const MaxSetSize = 255

// Set is an ordered, immutable collection of guardians with indices 0..n-1.
type Set struct {
	guardians []*Guardian
}

// Single returns a one-element set. The guardian is re-bound to index 0.
func Single(g *Guardian) (*Set, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: nil guardian", ErrInvalidKey)
	}
	if g.index != 0 {
		g = g.WithIndex(0)
	}
	return &Set{guardians: []*Guardian{g}}, nil
}

// DefaultSet is a single-guardian set holding the devnet guardian-0 key.
func DefaultSet() *Set {
	return &Set{guardians: []*Guardian{Default(0)}}
}

// FromList builds a set from guardians whose indices must be exactly 0..n-1.
// The input order does not matter.
func FromList(guardians []*Guardian) (*Set, error) {
	if len(guardians) == 0 {
		return nil, ErrEmptySet
	}
	if len(guardians) > MaxSetSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyGuardians, len(guardians), MaxSetSize)
	}

	seen := make(map[uint8]struct{}, len(guardians))
	for i, g := range guardians {
		if g == nil {
			return nil, fmt.Errorf("%w: nil guardian at position %d", ErrInvalidKey, i)
		}
		if _, ok := seen[g.index]; ok {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateIndex, g.index)
		}
		seen[g.index] = struct{}{}
	}

	sorted := make([]*Guardian, len(guardians))
	copy(sorted, guardians)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].index < sorted[j].index })

	for i, g := range sorted {
		if int(g.index) != i {
			return nil, fmt.Errorf("%w: expected index %d, got %d", ErrNonContiguousIndex, i, g.index)
		}
	}

	return &Set{guardians: sorted}, nil
}

// Generate deterministically derives count guardians from seed.
//
// The secret key of guardian i is the first keccak256 output over
//
//	LE64(seed) || LE64(i) || LE64(attempt) || 16 zero bytes
//
// for attempt = 0, 1, ... that is a valid secp256k1 scalar.
func Generate(count int, seed uint64) (*Set, error) {
	if count <= 0 {
		return nil, ErrEmptySet
	}
	if count > MaxSetSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyGuardians, count, MaxSetSize)
	}

	guardians := make([]*Guardian, count)
	for i := range guardians {
		g, err := deriveGuardian(seed, uint8(i)) // #nosec G115 -- count is bounded by MaxSetSize
		if err != nil {
			return nil, err
		}
		guardians[i] = g
	}

	return &Set{guardians: guardians}, nil
}

// DeriveSecretKey returns the secret scalar Generate assigns to index under seed.
func DeriveSecretKey(seed uint64, index uint8) ([32]byte, error) {
	g, err := deriveGuardian(seed, index)
	if err != nil {
		return [32]byte{}, err
	}
	return g.SecretKey(), nil
}

// maxDeriveAttempts bounds the rejection loop; the chance of a single
// rejection is about 2^-128.
const maxDeriveAttempts = 256

func deriveGuardian(seed uint64, index uint8) (*Guardian, error) {
	var input [40]byte
	binary.LittleEndian.PutUint64(input[0:8], seed)
	binary.LittleEndian.PutUint64(input[8:16], uint64(index))

	for attempt := uint64(0); attempt < maxDeriveAttempts; attempt++ {
		binary.LittleEndian.PutUint64(input[16:24], attempt)

		var secret [32]byte
		copy(secret[:], crypto.Keccak256(input[:]))

		g, err := New(secret, index)
		if err == nil {
			return g, nil
		}
	}

	return nil, fmt.Errorf("%w: no valid scalar for seed %d index %d", ErrInvalidKey, seed, index)
}

// Quorum returns the minimum number of signatures for a set of n guardians.
func Quorum(n int) (int, error) {
	if n <= 0 {
		return 0, ErrEmptySet
	}
	return vaaLib.CalculateQuorum(n), nil
}

func (s *Set) Len() int {
	return len(s.guardians)
}

// QuorumCount is Quorum(s.Len()).
func (s *Set) QuorumCount() (int, error) {
	return Quorum(len(s.guardians))
}

// Guardian returns the guardian at index.
func (s *Set) Guardian(index int) (*Guardian, error) {
	if index < 0 || index >= len(s.guardians) {
		return nil, fmt.Errorf("%w: %d (set size %d)", ErrIndexOutOfRange, index, len(s.guardians))
	}
	return s.guardians[index], nil
}

// Guardians returns the guardians in index order.
func (s *Set) Guardians() []*Guardian {
	out := make([]*Guardian, len(s.guardians))
	copy(out, s.guardians)
	return out
}

// Addresses returns the guardian addresses in index order, the layout
// expected by on-chain guardian set accounts.
func (s *Set) Addresses() []common.Address {
	out := make([]common.Address, len(s.guardians))
	for i, g := range s.guardians {
		out[i] = g.address
	}
	return out
}

func (s *Set) AddressMap() map[uint8]common.Address {
	out := make(map[uint8]common.Address, len(s.guardians))
	for _, g := range s.guardians {
		out[g.index] = g.address
	}
	return out
}

// KeyIndex returns a given address index from the guardian set. Returns (-1, false)
// if the address wasn't found and (index, true) otherwise.
func (s *Set) KeyIndex(addr common.Address) (int, bool) {
	for n, g := range s.guardians {
		if g.address == addr {
			return n, true
		}
	}
	return -1, false
}

// KeysAsHexStrings returns the checksummed hex form of every address.
func (s *Set) KeysAsHexStrings() []string {
	r := make([]string, len(s.guardians))
	for n, g := range s.guardians {
		r[n] = g.address.Hex()
	}
	return r
}
