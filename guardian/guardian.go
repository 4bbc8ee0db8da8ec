// Package guardian provides simulated Wormhole guardians: secp256k1 signing
// keys with their Ethereum-style addresses, and index-stable guardian sets.
package guardian

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrInvalidKey         = errors.New("invalid guardian key")
	ErrDuplicateIndex     = errors.New("duplicate guardian index")
	ErrNonContiguousIndex = errors.New("guardian indices are not contiguous")
	ErrEmptySet           = errors.New("guardian set is empty")
	ErrTooManyGuardians   = errors.New("too many guardians")
	ErrIndexOutOfRange    = errors.New("guardian index out of range")
)

// DefaultSecretKey is the well-known devnet guardian-0 key. It is public and
// must only ever be used for tests.
var DefaultSecretKey = [32]byte{
	0xcf, 0xb1, 0x23, 0x03, 0xa1, 0x9c, 0xde, 0x58, 0x0b, 0xb4, 0xdd, 0x77, 0x16, 0x39, 0xb0, 0xd2,
	0x6b, 0xc6, 0x83, 0x53, 0x64, 0x55, 0x71, 0xa8, 0xcf, 0xf5, 0x16, 0xab, 0x2e, 0xe1, 0x13, 0xa0,
}

// Guardian is a single attesting identity.
type Guardian struct {
	index   uint8
	key     *ecdsa.PrivateKey
	address common.Address
}

// New creates a guardian from a raw secp256k1 scalar.
func New(secret [32]byte, index uint8) (*Guardian, error) {
	key, err := crypto.ToECDSA(secret[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	return &Guardian{
		index:   index,
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// FromHex creates a guardian from a hex encoded secret key, with or without 0x prefix.
func FromHex(hexKey string, index uint8) (*Guardian, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("%w: expected 32 bytes, got %d", ErrInvalidKey, len(b))
	}

	var secret [32]byte
	copy(secret[:], b)
	return New(secret, index)
}

// Default returns the devnet guardian-0 key at the given index.
func Default(index uint8) *Guardian {
	g, err := New(DefaultSecretKey, index)
	if err != nil {
		panic(err)
	}
	return g
}

func (g *Guardian) Index() uint8 {
	return g.index
}

// Address returns the last 20 bytes of keccak256 over the uncompressed public key.
func (g *Guardian) Address() common.Address {
	return g.address
}

func (g *Guardian) PublicKey() ecdsa.PublicKey {
	return g.key.PublicKey
}

// SecretKey returns a copy of the raw scalar.
func (g *Guardian) SecretKey() [32]byte {
	var secret [32]byte
	copy(secret[:], crypto.FromECDSA(g.key))
	return secret
}

// WithIndex returns a guardian sharing this key at a different index.
func (g *Guardian) WithIndex(index uint8) *Guardian {
	return &Guardian{
		index:   index,
		key:     g.key,
		address: g.address,
	}
}

// Sign produces a 65 byte recoverable signature [r || s || v] over digest.
func (g *Guardian) Sign(digest common.Hash) ([65]byte, error) {
	var out [65]byte
	sig, err := crypto.Sign(digest.Bytes(), g.key)
	if err != nil {
		return out, fmt.Errorf("guardian %d failed to sign: %w", g.index, err)
	}
	copy(out[:], sig)
	return out, nil
}

// RecoverAddress returns the address of the key that produced sig over digest.
func RecoverAddress(digest common.Hash, sig [65]byte) (common.Address, error) {
	pubKey, err := crypto.Ecrecover(digest.Bytes(), sig[:])
	if err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(crypto.Keccak256(pubKey[1:])[12:]), nil
}
