package svm

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/near/borsh-go"
	"go.uber.org/zap"

	"github.com/wormholelabs-xyz/wormhole-svm-test/vaa"
)

// GuardianSignaturesDiscriminator is the anchor account discriminator of the
// shim's GuardianSignatures account.
var GuardianSignaturesDiscriminator = anchorDiscriminator("account:GuardianSignatures")

func anchorDiscriminator(name string) [8]byte {
	var out [8]byte
	sum := sha256.Sum256([]byte(name))
	copy(out[:], sum[:8])
	return out
}

// GuardianSignatures is the shim account holding posted signatures until the
// consuming instruction verifies them.
type GuardianSignatures struct {
	RefundRecipient    [32]byte
	GuardianSetIndexBE [4]byte
	Signatures         [][vaa.SignatureLength]byte
}

func (g GuardianSignatures) GuardianSetIndex() uint32 {
	return binary.BigEndian.Uint32(g.GuardianSetIndexBE[:])
}

func (g GuardianSignatures) Serialize() ([]byte, error) {
	body, err := borsh.Serialize(g)
	if err != nil {
		return nil, err
	}
	return append(GuardianSignaturesDiscriminator[:], body...), nil
}

func ParseGuardianSignatures(data []byte) (*GuardianSignatures, error) {
	if len(data) < len(GuardianSignaturesDiscriminator) || !bytes.Equal(data[:8], GuardianSignaturesDiscriminator[:]) {
		return nil, fmt.Errorf("%w: missing GuardianSignatures discriminator", ErrInvalidAccount)
	}
	g := &GuardianSignatures{}
	if err := borsh.Deserialize(g, data[8:]); err != nil {
		return nil, fmt.Errorf("%w: guardian signatures: %v", ErrInvalidAccount, err)
	}
	return g, nil
}

// PostedSignatures is a signatures account written by PostSignatures.
type PostedSignatures struct {
	Pubkey  solana.PublicKey
	Account GuardianSignatures
}

// PostSignatures writes a shim GuardianSignatures account holding sigs, as
// the shim's post_signatures instruction would, funded by and refundable to
// payer.
func (w *Wormhole) PostSignatures(payer solana.PublicKey, guardianSetIndex uint32, sigs [][vaa.SignatureLength]byte) (*PostedSignatures, error) {
	if len(sigs) == 0 {
		return nil, ErrNoGuardianSignature
	}
	if len(sigs) > vaa.MaxSignatures {
		return nil, fmt.Errorf("%w: %d", ErrTooManySignatures, len(sigs))
	}

	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to create signatures keypair: %w", err)
	}

	account := GuardianSignatures{
		RefundRecipient: payer,
		Signatures:      append([][vaa.SignatureLength]byte{}, sigs...),
	}
	binary.BigEndian.PutUint32(account.GuardianSetIndexBE[:], guardianSetIndex)

	data, err := account.Serialize()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize guardian signatures: %w", err)
	}

	pubkey := key.PublicKey()
	if err := w.host.SetAccount(pubkey, Account{
		Lamports: RentExemptLamports(len(data)),
		Data:     data,
		Owner:    w.ShimProgramID,
	}); err != nil {
		return nil, fmt.Errorf("failed to write guardian signatures: %w", err)
	}

	w.logger.Debug("Posted guardian signatures",
		zap.String("account", pubkey.String()),
		zap.Uint32("guardianSetIndex", guardianSetIndex),
		zap.Int("signatures", len(sigs)))

	return &PostedSignatures{Pubkey: pubkey, Account: account}, nil
}

// PostVAASignatures posts the signatures carried by v.
func (w *Wormhole) PostVAASignatures(payer solana.PublicKey, v vaa.VAA) (*PostedSignatures, error) {
	return w.PostSignatures(payer, v.GuardianSetIndex(), v.GuardianSignatures())
}

// CloseSignatures removes a signatures account and credits its lamports to
// refundRecipient, which must match the recipient recorded at posting.
func (w *Wormhole) CloseSignatures(signatures, refundRecipient solana.PublicKey) error {
	account, ok := w.host.GetAccount(signatures)
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, signatures)
	}
	if !account.Owner.Equals(w.ShimProgramID) {
		return fmt.Errorf("%w: %s is owned by %s", ErrInvalidAccount, signatures, account.Owner)
	}

	posted, err := ParseGuardianSignatures(account.Data)
	if err != nil {
		return err
	}
	if solana.PublicKey(posted.RefundRecipient) != refundRecipient {
		return fmt.Errorf("%w: expected %s", ErrRefundMismatch, solana.PublicKey(posted.RefundRecipient))
	}

	recipient, ok := w.host.GetAccount(refundRecipient)
	if !ok {
		recipient = Account{Owner: solana.SystemProgramID}
	}
	recipient.Lamports += account.Lamports

	if err := w.host.SetAccount(refundRecipient, recipient); err != nil {
		return fmt.Errorf("failed to refund %s: %w", refundRecipient, err)
	}
	if err := w.host.RemoveAccount(signatures); err != nil {
		return err
	}

	w.logger.Debug("Closed guardian signatures",
		zap.String("account", signatures.String()),
		zap.Uint64("refunded", account.Lamports))
	return nil
}

// WithPostedSignatures posts sigs, runs fn with the signatures account and
// closes the account afterwards regardless of fn's outcome.
func (w *Wormhole) WithPostedSignatures(payer solana.PublicKey, guardianSetIndex uint32, sigs [][vaa.SignatureLength]byte, fn func(signatures solana.PublicKey) error) error {
	posted, err := w.PostSignatures(payer, guardianSetIndex, sigs)
	if err != nil {
		return err
	}

	fnErr := fn(posted.Pubkey)
	closeErr := w.CloseSignatures(posted.Pubkey, payer)
	return errors.Join(fnErr, closeErr)
}
