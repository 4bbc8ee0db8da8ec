package vaa

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/wormholelabs-xyz/wormhole-svm-test/guardian"
)

// Version is the only VAA version produced and accepted.
const Version uint8 = vaaLib.SupportedVAAVersion

// HeaderLength is version (1) + guardian set index (4) + signature count (1).
const HeaderLength = 6

// VAA is an immutable Verified Action Approval. The zero value is not
// meaningful; use Build or FromBody.
type VAA struct {
	guardianSetIndex uint32
	signatures       SignatureSet
	body             Body
}

// Build creates an unsigned VAA.
func Build(emitterChain ChainID, emitterAddress []byte, sequence uint64, payload []byte, opts ...BodyOption) (VAA, error) {
	body, err := NewBody(emitterChain, emitterAddress, sequence, payload, opts...)
	if err != nil {
		return VAA{}, err
	}
	return FromBody(body), nil
}

// FromBody wraps body in an unsigned VAA.
func FromBody(body Body) VAA {
	body.Payload = append([]byte{}, body.Payload...)
	return VAA{body: body}
}

// Sign returns a copy of v signed by every guardian in set.
func (v VAA) Sign(set *guardian.Set, guardianSetIndex uint32) (VAA, error) {
	sigs, err := Sign(v.body, set)
	if err != nil {
		return VAA{}, err
	}
	return v.withSignatures(guardianSetIndex, sigs), nil
}

// SignWith returns a copy of v signed by the guardians at indices only.
func (v VAA) SignWith(set *guardian.Set, guardianSetIndex uint32, indices []uint8) (VAA, error) {
	sigs, err := SignSubset(v.body, set, indices)
	if err != nil {
		return VAA{}, err
	}
	return v.withSignatures(guardianSetIndex, sigs), nil
}

// WithSignatures attaches an already assembled signature set.
func (v VAA) WithSignatures(guardianSetIndex uint32, sigs SignatureSet) VAA {
	return v.withSignatures(guardianSetIndex, sigs)
}

func (v VAA) withSignatures(guardianSetIndex uint32, sigs SignatureSet) VAA {
	return VAA{
		guardianSetIndex: guardianSetIndex,
		signatures:       sigs,
		body:             v.body,
	}
}

func (v VAA) Version() uint8 {
	return Version
}

func (v VAA) GuardianSetIndex() uint32 {
	return v.guardianSetIndex
}

func (v VAA) Signatures() SignatureSet {
	return v.signatures
}

// Body returns a copy of the body.
func (v VAA) Body() Body {
	b := v.body
	b.Payload = append([]byte{}, v.body.Payload...)
	return b
}

func (v VAA) Digest() common.Hash {
	return v.body.Digest()
}

// HexDigest returns the hex-encoded digest.
func (v VAA) HexDigest() string {
	return hex.EncodeToString(v.Digest().Bytes())
}

func (v VAA) MessageID() string {
	return v.body.MessageID()
}

// GuardianSignatures returns the signatures in the 66 byte form the verify
// shim expects.
func (v VAA) GuardianSignatures() [][SignatureLength]byte {
	return v.signatures.Wire()
}

// VerifySignatures checks every attached signature against set.
func (v VAA) VerifySignatures(set *guardian.Set) error {
	return v.signatures.Verify(v.Digest(), set)
}

// Verify performs the checks of an on-chain verifier: the VAA is signed,
// reaches quorum and every signature is valid.
func (v VAA) Verify(set *guardian.Set) error {
	if v.signatures.Len() == 0 {
		return fmt.Errorf("%w: VAA was not signed", ErrNoQuorum)
	}
	if !v.signatures.MeetsQuorum(set) {
		q, _ := set.QuorumCount()
		return fmt.Errorf("%w: %d signatures, need %d", ErrNoQuorum, v.signatures.Len(), q)
	}
	return v.VerifySignatures(set)
}

// Encode returns the wire form:
// version || guardian set index || signature count || signatures || body.
func (v VAA) Encode() []byte {
	body := v.body.Encode()
	buf := bytes.NewBuffer(make([]byte, 0, HeaderLength+SignatureLength*v.signatures.Len()+len(body)))

	vaaLib.MustWrite(buf, binary.BigEndian, Version)
	vaaLib.MustWrite(buf, binary.BigEndian, v.guardianSetIndex)
	vaaLib.MustWrite(buf, binary.BigEndian, uint8(v.signatures.Len())) // #nosec G115 -- bounded by MaxSignatures
	for _, sig := range v.signatures.sigs {
		vaaLib.MustWrite(buf, binary.BigEndian, sig.GuardianIndex)
		buf.Write(sig.Data[:])
	}
	buf.Write(body)

	return buf.Bytes()
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (v VAA) MarshalBinary() ([]byte, error) {
	return v.Encode(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (v *VAA) UnmarshalBinary(data []byte) error {
	decoded, err := Decode(data)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// Decode parses the wire form produced by Encode. The one-byte count caps
// signatures at MaxSignatures, so ErrTooManySignatures only comes from
// NewSignatureSet.
func Decode(data []byte) (VAA, error) {
	if len(data) < HeaderLength {
		return VAA{}, fmt.Errorf("%w: VAA too short: %d bytes", ErrMalformedVAA, len(data))
	}

	version := data[0]
	if version != Version {
		return VAA{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	guardianSetIndex := binary.BigEndian.Uint32(data[1:5])
	signatureCount := int(data[5])

	signaturesEnd := HeaderLength + signatureCount*SignatureLength
	if len(data) < signaturesEnd {
		return VAA{}, fmt.Errorf("%w: VAA too short for %d signatures", ErrMalformedVAA, signatureCount)
	}

	sigs := make([]Signature, signatureCount)
	lastIndex := -1
	for i := range sigs {
		start := HeaderLength + i*SignatureLength
		sigs[i].GuardianIndex = data[start]
		copy(sigs[i].Data[:], data[start+1:start+SignatureLength])

		if int(sigs[i].GuardianIndex) <= lastIndex {
			return VAA{}, fmt.Errorf("%w: guardian indices not increasing at signature %d", ErrMalformedVAA, i)
		}
		lastIndex = int(sigs[i].GuardianIndex)
	}

	set, err := NewSignatureSet(sigs)
	if err != nil {
		return VAA{}, err
	}

	body, err := DecodeBody(data[signaturesEnd:])
	if err != nil {
		return VAA{}, err
	}

	return VAA{
		guardianSetIndex: guardianSetIndex,
		signatures:       set,
		body:             body,
	}, nil
}

// ToSDK converts v to the wormhole sdk representation.
func (v VAA) ToSDK() *vaaLib.VAA {
	return &vaaLib.VAA{
		Version:          Version,
		GuardianSetIndex: v.guardianSetIndex,
		Signatures:       v.signatures.toSDK(),
		Timestamp:        time.Unix(int64(v.body.Timestamp), 0),
		Nonce:            v.body.Nonce,
		Sequence:         v.body.Sequence,
		ConsistencyLevel: v.body.ConsistencyLevel,
		EmitterChain:     v.body.EmitterChain,
		EmitterAddress:   v.body.EmitterAddress,
		Payload:          append([]byte{}, v.body.Payload...),
	}
}

// FromSDK converts a wormhole sdk VAA. Its signatures must satisfy the
// ordering invariant of SignatureSet.
func FromSDK(s *vaaLib.VAA) (VAA, error) {
	if s.Version != Version {
		return VAA{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, s.Version)
	}

	sigs := make([]Signature, len(s.Signatures))
	for i, sig := range s.Signatures {
		sigs[i] = Signature{GuardianIndex: sig.Index, Data: sig.Signature}
	}
	set, err := NewSignatureSet(sigs)
	if err != nil {
		return VAA{}, err
	}

	return VAA{
		guardianSetIndex: s.GuardianSetIndex,
		signatures:       set,
		body: Body{
			Timestamp:        uint32(s.Timestamp.Unix()), // #nosec G115 -- This conversion is safe until year 2106
			Nonce:            s.Nonce,
			EmitterChain:     s.EmitterChain,
			EmitterAddress:   s.EmitterAddress,
			Sequence:         s.Sequence,
			ConsistencyLevel: s.ConsistencyLevel,
			Payload:          append([]byte{}, s.Payload...),
		},
	}, nil
}
