// Package vaa builds, signs and encodes Wormhole VAAs for tests.
package vaa

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
)

var (
	ErrInvalidEmitterAddress = errors.New("emitter address longer than 32 bytes")
	ErrMalformedVAA          = errors.New("malformed VAA")
	ErrUnsupportedVersion    = errors.New("unsupported VAA version")
	ErrTooManySignatures     = errors.New("too many signatures")
	ErrDuplicateSigner       = errors.New("duplicate guardian signature")
	ErrBadSignature          = errors.New("VAA had bad signatures")
	ErrNoQuorum              = errors.New("VAA did not have a quorum")
)

type (
	ChainID = vaaLib.ChainID
	Address = vaaLib.Address
)

// Chains commonly used in fixtures.
const (
	ChainIDSolana   = vaaLib.ChainIDSolana
	ChainIDEthereum = vaaLib.ChainIDEthereum
	ChainIDArbitrum = vaaLib.ChainIDArbitrum
	ChainIDBase     = vaaLib.ChainIDBase
)

const (
	// BodyHeaderLength is the fixed part of a body: timestamp (4), nonce (4),
	// emitter chain (2), emitter address (32), sequence (8), consistency level (1).
	BodyHeaderLength = 51

	DefaultConsistencyLevel = uint8(1)
)

// Body is the attested content of a VAA.
type Body struct {
	Timestamp        uint32
	Nonce            uint32
	EmitterChain     ChainID
	EmitterAddress   Address
	Sequence         uint64
	ConsistencyLevel uint8
	Payload          []byte
}

type BodyOption func(*Body)

func WithTimestamp(timestamp uint32) BodyOption {
	return func(b *Body) { b.Timestamp = timestamp }
}

func WithNonce(nonce uint32) BodyOption {
	return func(b *Body) { b.Nonce = nonce }
}

func WithConsistencyLevel(level uint8) BodyOption {
	return func(b *Body) { b.ConsistencyLevel = level }
}

// NewBody creates a body. Emitter addresses shorter than 32 bytes are
// zero-padded on the left. Timestamp and nonce default to 0, the consistency
// level to 1.
func NewBody(emitterChain ChainID, emitterAddress []byte, sequence uint64, payload []byte, opts ...BodyOption) (Body, error) {
	addr, err := PadEmitterAddress(emitterAddress)
	if err != nil {
		return Body{}, err
	}

	b := Body{
		EmitterChain:     emitterChain,
		EmitterAddress:   addr,
		Sequence:         sequence,
		ConsistencyLevel: DefaultConsistencyLevel,
		Payload:          append([]byte{}, payload...),
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b, nil
}

// PadEmitterAddress left-pads b to a 32 byte Wormhole address.
func PadEmitterAddress(b []byte) (Address, error) {
	var addr Address
	if len(b) > len(addr) {
		return addr, fmt.Errorf("%w: got %d bytes", ErrInvalidEmitterAddress, len(b))
	}
	copy(addr[len(addr)-len(b):], b)
	return addr, nil
}

// Encode returns the canonical body serialization. Do not change the layout:
// the digest of these bytes is what guardians sign and what programs use for
// replay protection.
func (b Body) Encode() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, BodyHeaderLength+len(b.Payload)))
	vaaLib.MustWrite(buf, binary.BigEndian, b.Timestamp)
	vaaLib.MustWrite(buf, binary.BigEndian, b.Nonce)
	vaaLib.MustWrite(buf, binary.BigEndian, b.EmitterChain)
	buf.Write(b.EmitterAddress[:])
	vaaLib.MustWrite(buf, binary.BigEndian, b.Sequence)
	vaaLib.MustWrite(buf, binary.BigEndian, b.ConsistencyLevel)
	buf.Write(b.Payload)
	return buf.Bytes()
}

// Digest is keccak256(keccak256(body)), the signing input.
func (b Body) Digest() common.Hash {
	return doubleKeccak(b.Encode())
}

// Hash is the single keccak256 of the body, used by the Solana core bridge
// to derive posted VAA accounts.
func (b Body) Hash() common.Hash {
	return crypto.Keccak256Hash(b.Encode())
}

func doubleKeccak(bz []byte) common.Hash {
	return crypto.Keccak256Hash(crypto.Keccak256Hash(bz).Bytes())
}

// DecodeBody parses a canonical body encoding.
func DecodeBody(data []byte) (Body, error) {
	if len(data) < BodyHeaderLength {
		return Body{}, fmt.Errorf("%w: body too short: %d bytes", ErrMalformedVAA, len(data))
	}

	b := Body{
		Timestamp:        binary.BigEndian.Uint32(data[0:4]),
		Nonce:            binary.BigEndian.Uint32(data[4:8]),
		EmitterChain:     ChainID(binary.BigEndian.Uint16(data[8:10])),
		Sequence:         binary.BigEndian.Uint64(data[42:50]),
		ConsistencyLevel: data[50],
		Payload:          append([]byte{}, data[BodyHeaderLength:]...),
	}
	copy(b.EmitterAddress[:], data[10:42])
	return b, nil
}

// MessageID returns a human-readable emitter_chain/emitter_address/sequence tuple.
func (b Body) MessageID() string {
	return fmt.Sprintf("%d/%s/%d", b.EmitterChain, b.EmitterAddress, b.Sequence)
}
