package svm

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"
	"github.com/near/borsh-go"

	"github.com/wormholelabs-xyz/wormhole-svm-test/guardian"
	"github.com/wormholelabs-xyz/wormhole-svm-test/vaa"
)

// GuardianSetData is the core bridge guardian set account.
type GuardianSetData struct {
	Index          uint32
	Keys           [][20]byte
	CreationTime   uint32
	ExpirationTime uint32
}

// NewGuardianSetData builds the account contents for set at index. An
// expiration time of 0 marks the set as current.
func NewGuardianSetData(set *guardian.Set, index uint32, creationTime uint32) GuardianSetData {
	addrs := set.Addresses()
	keys := make([][20]byte, len(addrs))
	for i, addr := range addrs {
		keys[i] = addr
	}
	return GuardianSetData{
		Index:        index,
		Keys:         keys,
		CreationTime: creationTime,
	}
}

func (d GuardianSetData) Serialize() ([]byte, error) {
	return borsh.Serialize(d)
}

func ParseGuardianSetData(data []byte) (*GuardianSetData, error) {
	d := &GuardianSetData{}
	if err := borsh.Deserialize(d, data); err != nil {
		return nil, fmt.Errorf("%w: guardian set: %v", ErrInvalidAccount, err)
	}
	return d, nil
}

// GuardianSetPDA derives the guardian set account for index under the core
// bridge program.
func GuardianSetPDA(programID solana.PublicKey, index uint32) (solana.PublicKey, uint8, error) {
	indexBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(indexBytes, index)
	return solana.FindProgramAddress([][]byte{SeedGuardianSet, indexBytes}, programID)
}

// PostedVAAPDA derives the posted VAA account from the VAA body hash.
func PostedVAAPDA(programID solana.PublicKey, bodyHash [32]byte) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{SeedPostedVAA, bodyHash[:]}, programID)
}

// EmitterPDA derives the emitter account a program publishes through.
func EmitterPDA(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{SeedEmitter}, programID)
}

// ComputeVAAHash computes keccak256 of the body of an encoded VAA, the seed
// of its posted VAA account.
func ComputeVAAHash(vaaBytes []byte) ([32]byte, error) {
	if len(vaaBytes) < vaa.HeaderLength {
		return [32]byte{}, fmt.Errorf("%w: VAA too short", vaa.ErrMalformedVAA)
	}

	sigCount := int(vaaBytes[5])
	bodyStart := vaa.HeaderLength + sigCount*vaa.SignatureLength

	if len(vaaBytes) < bodyStart {
		return [32]byte{}, fmt.Errorf("%w: VAA too short for %d signatures", vaa.ErrMalformedVAA, sigCount)
	}

	return crypto.Keccak256Hash(vaaBytes[bodyStart:]), nil
}

// EmitterAddressFrom20 left pads an EVM address to a Wormhole emitter address.
func EmitterAddressFrom20(addr [20]byte) vaa.Address {
	var out vaa.Address
	copy(out[12:], addr[:])
	return out
}

// EmitterAddressFromPubkey returns the emitter address of a Solana account.
func EmitterAddressFromPubkey(pubkey solana.PublicKey) vaa.Address {
	return vaa.Address(pubkey)
}
