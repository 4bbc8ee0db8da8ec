// Package svm materializes Wormhole core bridge and verify-VAA shim state
// into a Solana test host so programs that consume VAAs can be exercised
// without a cluster.
package svm

import (
	"errors"

	"github.com/gagliardetto/solana-go"
)

var (
	// CoreBridgeProgramID is the mainnet Wormhole core bridge.
	CoreBridgeProgramID = solana.MustPublicKeyFromBase58("worm2ZoG2kUd4vFXhvjh93UUH596ayRfgQ2MgjNMTth")

	// VerifyVAAShimProgramID is the mainnet verify-VAA shim.
	VerifyVAAShimProgramID = solana.MustPublicKeyFromBase58("EFaNWErqAtVWufdNb7yofSHHfWFos843DFpu4JBw24at")
)

// PDA seeds
var (
	SeedGuardianSet = []byte("GuardianSet")
	SeedPostedVAA   = []byte("PostedVAA")
	SeedEmitter     = []byte("emitter")
)

var (
	ErrProgramNotFound     = errors.New("program binary not found")
	ErrAccountNotFound     = errors.New("account not found")
	ErrInvalidAccount      = errors.New("invalid account")
	ErrRefundMismatch      = errors.New("refund recipient mismatch")
	ErrTooManySignatures   = errors.New("too many guardian signatures")
	ErrNoGuardianSignature = errors.New("no guardian signatures")
)

const (
	lamportsPerByteYear  = 3480
	exemptionThreshold   = 2
	accountStorageOffset = 128
)

// Account is the state of a single account in the host.
type Account struct {
	Lamports   uint64
	Data       []byte
	Owner      solana.PublicKey
	Executable bool
	RentEpoch  uint64
}

// RentExemptLamports is the minimum balance of an account holding dataLen
// bytes under default rent parameters.
func RentExemptLamports(dataLen int) uint64 {
	return uint64(accountStorageOffset+dataLen) * lamportsPerByteYear * exemptionThreshold // #nosec G115 -- dataLen is a buffer length
}
