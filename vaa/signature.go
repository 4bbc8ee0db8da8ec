package vaa

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"golang.org/x/sync/errgroup"

	"github.com/wormholelabs-xyz/wormhole-svm-test/guardian"
)

// MaxSignatures is the largest signature count encodable in a VAA header.
const MaxSignatures = 255

// SignatureLength is the wire size of one entry: guardian index plus the
// 65 byte recoverable signature.
const SignatureLength = 66

// Signature of a single guardian.
type Signature struct {
	GuardianIndex uint8
	Data          vaaLib.SignatureData
}

// Wire returns the 66 byte entry [index || r || s || v].
func (s Signature) Wire() [SignatureLength]byte {
	var out [SignatureLength]byte
	out[0] = s.GuardianIndex
	copy(out[1:], s.Data[:])
	return out
}

// SignatureSet is a list of signatures ordered by strictly increasing
// guardian index, the order verifiers require.
type SignatureSet struct {
	sigs []Signature
}

// NewSignatureSet sorts sigs by guardian index and rejects duplicates.
func NewSignatureSet(sigs []Signature) (SignatureSet, error) {
	if len(sigs) > MaxSignatures {
		return SignatureSet{}, fmt.Errorf("%w: %d > %d", ErrTooManySignatures, len(sigs), MaxSignatures)
	}
	if len(sigs) == 0 {
		return SignatureSet{}, nil
	}

	sorted := make([]Signature, len(sigs))
	copy(sorted, sigs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].GuardianIndex < sorted[j].GuardianIndex })

	for i := 1; i < len(sorted); i++ {
		if sorted[i].GuardianIndex == sorted[i-1].GuardianIndex {
			return SignatureSet{}, fmt.Errorf("%w: guardian %d", ErrDuplicateSigner, sorted[i].GuardianIndex)
		}
	}

	return SignatureSet{sigs: sorted}, nil
}

// Sign signs body with every guardian in set.
func Sign(body Body, set *guardian.Set) (SignatureSet, error) {
	indices := make([]uint8, set.Len())
	for i := range indices {
		indices[i] = uint8(i) // #nosec G115 -- guardian sets never exceed 255 members
	}
	return SignSubset(body, set, indices)
}

// SignSubset signs body with exactly the guardians at indices. Quorum is not
// enforced so that under-quorum VAAs can be produced for negative tests.
func SignSubset(body Body, set *guardian.Set, indices []uint8) (SignatureSet, error) {
	seen := make(map[uint8]struct{}, len(indices))
	signers := make([]*guardian.Guardian, len(indices))
	for i, idx := range indices {
		if _, ok := seen[idx]; ok {
			return SignatureSet{}, fmt.Errorf("%w: guardian %d requested twice", ErrDuplicateSigner, idx)
		}
		seen[idx] = struct{}{}

		g, err := set.Guardian(int(idx))
		if err != nil {
			return SignatureSet{}, err
		}
		signers[i] = g
	}

	digest := body.Digest()
	sigs := make([]Signature, len(signers))

	var eg errgroup.Group
	for i, g := range signers {
		i, g := i, g
		eg.Go(func() error {
			data, err := g.Sign(digest)
			if err != nil {
				return err
			}
			sigs[i] = Signature{GuardianIndex: g.Index(), Data: data}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return SignatureSet{}, err
	}

	return NewSignatureSet(sigs)
}

func (s SignatureSet) Len() int {
	return len(s.sigs)
}

func (s SignatureSet) At(i int) Signature {
	return s.sigs[i]
}

// Signatures returns a copy of the ordered signatures.
func (s SignatureSet) Signatures() []Signature {
	out := make([]Signature, len(s.sigs))
	copy(out, s.sigs)
	return out
}

func (s SignatureSet) Indices() []uint8 {
	out := make([]uint8, len(s.sigs))
	for i, sig := range s.sigs {
		out[i] = sig.GuardianIndex
	}
	return out
}

// Wire returns every entry in the 66 byte form posted to the verify shim.
func (s SignatureSet) Wire() [][SignatureLength]byte {
	out := make([][SignatureLength]byte, len(s.sigs))
	for i, sig := range s.sigs {
		out[i] = sig.Wire()
	}
	return out
}

// MeetsQuorum reports whether the set carries enough signatures for set.
// It does not check the signatures themselves.
func (s SignatureSet) MeetsQuorum(set *guardian.Set) bool {
	q, err := set.QuorumCount()
	if err != nil {
		return false
	}
	return len(s.sigs) >= q
}

// Verify checks that every signature recovers the address of the guardian at
// its index in set, mirroring the checks of on-chain verifiers apart from quorum.
func (s SignatureSet) Verify(digest common.Hash, set *guardian.Set) error {
	lastIndex := -1
	for _, sig := range s.sigs {
		if int(sig.GuardianIndex) <= lastIndex {
			return fmt.Errorf("%w: guardian indices not increasing at %d", ErrBadSignature, sig.GuardianIndex)
		}
		lastIndex = int(sig.GuardianIndex)

		g, err := set.Guardian(int(sig.GuardianIndex))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBadSignature, err)
		}

		addr, err := guardian.RecoverAddress(digest, sig.Data)
		if err != nil {
			return fmt.Errorf("%w: guardian %d: %v", ErrBadSignature, sig.GuardianIndex, err)
		}
		if addr != g.Address() {
			return fmt.Errorf("%w: guardian %d recovered %s, expected %s", ErrBadSignature, sig.GuardianIndex, addr.Hex(), g.Address().Hex())
		}
	}
	return nil
}

func (s SignatureSet) toSDK() []*vaaLib.Signature {
	out := make([]*vaaLib.Signature, len(s.sigs))
	for i, sig := range s.sigs {
		out[i] = &vaaLib.Signature{Index: sig.GuardianIndex, Signature: sig.Data}
	}
	return out
}
