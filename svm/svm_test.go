package svm

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wormholelabs-xyz/wormhole-svm-test/guardian"
	"github.com/wormholelabs-xyz/wormhole-svm-test/vaa"
)

func writePrograms(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultCoreBridgeBinary), []byte("core"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultShimBinary), []byte("shim"), 0600))
	return dir
}

func setupWormhole(t *testing.T, set *guardian.Set) (*MemoryHost, *Wormhole) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ProgramsDir = writePrograms(t)

	host := NewMemoryHost()
	w, err := Setup(zap.NewNop(), host, set, cfg)
	require.NoError(t, err)
	return host, w
}

func TestRentExemptLamports(t *testing.T) {
	assert.Equal(t, uint64(890880), RentExemptLamports(0))
	assert.Equal(t, uint64((128+165)*3480*2), RentExemptLamports(165))
}

func TestGuardianSetPDA(t *testing.T) {
	pda, bump, err := GuardianSetPDA(CoreBridgeProgramID, 0)
	require.NoError(t, err)

	expected, err := solana.CreateProgramAddress([][]byte{[]byte("GuardianSet"), {0, 0, 0, 0}, {bump}}, CoreBridgeProgramID)
	require.NoError(t, err)
	assert.Equal(t, expected, pda)

	other, _, err := GuardianSetPDA(CoreBridgeProgramID, 1)
	require.NoError(t, err)
	assert.NotEqual(t, pda, other)
}

func TestGuardianSetDataLayout(t *testing.T) {
	set, err := guardian.Generate(2, 1)
	require.NoError(t, err)

	data, err := NewGuardianSetData(set, 7, 1700000000).Serialize()
	require.NoError(t, err)
	require.Len(t, data, 4+4+2*20+4+4)

	assert.Equal(t, uint32(7), binary.LittleEndian.Uint32(data[0:4]))
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(data[4:8]))
	assert.Equal(t, set.Addresses()[0].Bytes(), data[8:28])
	assert.Equal(t, set.Addresses()[1].Bytes(), data[28:48])
	assert.Equal(t, uint32(1700000000), binary.LittleEndian.Uint32(data[48:52]))
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(data[52:56]))

	parsed, err := ParseGuardianSetData(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), parsed.Index)
	require.Len(t, parsed.Keys, 2)
	assert.Equal(t, [20]byte(set.Addresses()[1]), parsed.Keys[1])
}

func TestSetup(t *testing.T) {
	set := guardian.DefaultSet()
	host, w := setupWormhole(t, set)

	elf, ok := host.Program(CoreBridgeProgramID)
	require.True(t, ok)
	assert.Equal(t, []byte("core"), elf)
	elf, ok = host.Program(VerifyVAAShimProgramID)
	require.True(t, ok)
	assert.Equal(t, []byte("shim"), elf)

	pda, bump, err := GuardianSetPDA(CoreBridgeProgramID, 0)
	require.NoError(t, err)
	assert.Equal(t, pda, w.GuardianSet)
	assert.Equal(t, bump, w.GuardianSetBump)

	account, ok := host.GetAccount(w.GuardianSet)
	require.True(t, ok)
	assert.Equal(t, CoreBridgeProgramID, account.Owner)
	assert.Equal(t, RentExemptLamports(len(account.Data)), account.Lamports)

	parsed, err := ParseGuardianSetData(account.Data)
	require.NoError(t, err)
	assert.Equal(t, [][20]byte{guardian.Default(0).Address()}, parsed.Keys)
}

func TestSetupMissingPrograms(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProgramsDir = t.TempDir()

	_, err := Setup(zap.NewNop(), NewMemoryHost(), guardian.DefaultSet(), cfg)
	assert.ErrorIs(t, err, ErrProgramNotFound)

	cfg.SkipPrograms = true
	host := NewMemoryHost()
	_, err = Setup(zap.NewNop(), host, guardian.DefaultSet(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, host.Len())
}

func TestWriteAdditionalGuardianSet(t *testing.T) {
	host, w := setupWormhole(t, guardian.DefaultSet())

	next, err := guardian.Generate(5, 42)
	require.NoError(t, err)
	pda, _, err := w.WriteGuardianSet(next, 1)
	require.NoError(t, err)
	assert.NotEqual(t, w.GuardianSet, pda)

	account, ok := host.GetAccount(pda)
	require.True(t, ok)
	parsed, err := ParseGuardianSetData(account.Data)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), parsed.Index)
	assert.Len(t, parsed.Keys, 5)
}

func TestGuardianSignaturesDiscriminator(t *testing.T) {
	sum := sha256.Sum256([]byte("account:GuardianSignatures"))
	assert.Equal(t, sum[:8], GuardianSignaturesDiscriminator[:])
}

func TestPostAndCloseSignatures(t *testing.T) {
	set, err := guardian.Generate(3, 9)
	require.NoError(t, err)
	host, w := setupWormhole(t, set)

	v, err := vaa.Build(vaa.ChainID(1), bytes.Repeat([]byte{0xab}, 20), 42, []byte("Hello, Wormhole!"))
	require.NoError(t, err)
	v, err = v.Sign(set, 0)
	require.NoError(t, err)

	payer := solana.NewWallet().PublicKey()
	posted, err := w.PostVAASignatures(payer, v)
	require.NoError(t, err)

	account, ok := host.GetAccount(posted.Pubkey)
	require.True(t, ok)
	assert.Equal(t, VerifyVAAShimProgramID, account.Owner)
	require.Len(t, account.Data, 8+32+4+4+3*66)
	assert.Equal(t, GuardianSignaturesDiscriminator[:], account.Data[:8])
	assert.Equal(t, payer.Bytes(), account.Data[8:40])
	assert.Equal(t, []byte{0, 0, 0, 0}, account.Data[40:44])

	parsed, err := ParseGuardianSignatures(account.Data)
	require.NoError(t, err)
	assert.Equal(t, v.GuardianSignatures(), parsed.Signatures)
	assert.Equal(t, uint32(0), parsed.GuardianSetIndex())

	other := solana.NewWallet().PublicKey()
	assert.ErrorIs(t, w.CloseSignatures(posted.Pubkey, other), ErrRefundMismatch)

	require.NoError(t, w.CloseSignatures(posted.Pubkey, payer))
	_, ok = host.GetAccount(posted.Pubkey)
	assert.False(t, ok)

	refund, ok := host.GetAccount(payer)
	require.True(t, ok)
	assert.Equal(t, account.Lamports, refund.Lamports)

	assert.ErrorIs(t, w.CloseSignatures(posted.Pubkey, payer), ErrAccountNotFound)
}

func TestPostSignaturesValidation(t *testing.T) {
	_, w := setupWormhole(t, guardian.DefaultSet())
	payer := solana.NewWallet().PublicKey()

	_, err := w.PostSignatures(payer, 0, nil)
	assert.ErrorIs(t, err, ErrNoGuardianSignature)

	_, err = w.PostSignatures(payer, 0, make([][vaa.SignatureLength]byte, vaa.MaxSignatures+1))
	assert.ErrorIs(t, err, ErrTooManySignatures)

	posted, err := w.PostSignatures(payer, 0x01020304, make([][vaa.SignatureLength]byte, 1))
	require.NoError(t, err)
	assert.Equal(t, uint32(0x01020304), posted.Account.GuardianSetIndex())
}

func TestWithPostedSignatures(t *testing.T) {
	host, w := setupWormhole(t, guardian.DefaultSet())
	payer := solana.NewWallet().PublicKey()

	v, err := vaa.Build(1, bytes.Repeat([]byte{0xcd}, 20), 123, []byte("Bracket pattern test"))
	require.NoError(t, err)
	v, err = v.Sign(guardian.DefaultSet(), 0)
	require.NoError(t, err)

	var seen solana.PublicKey
	err = w.WithPostedSignatures(payer, 0, v.GuardianSignatures(), func(sigs solana.PublicKey) error {
		seen = sigs
		_, ok := host.GetAccount(sigs)
		assert.True(t, ok)
		return nil
	})
	require.NoError(t, err)
	_, ok := host.GetAccount(seen)
	assert.False(t, ok)

	failure := errors.New("verification failed")
	err = w.WithPostedSignatures(payer, 0, v.GuardianSignatures(), func(sigs solana.PublicKey) error {
		seen = sigs
		return failure
	})
	assert.ErrorIs(t, err, failure)
	_, ok = host.GetAccount(seen)
	assert.False(t, ok)
}

func TestComputeVAAHash(t *testing.T) {
	v, err := vaa.Build(1, []byte{1}, 1, []byte("x"))
	require.NoError(t, err)
	v, err = v.Sign(guardian.DefaultSet(), 0)
	require.NoError(t, err)

	hash, err := ComputeVAAHash(v.Encode())
	require.NoError(t, err)
	assert.Equal(t, [32]byte(crypto.Keccak256Hash(v.Body().Encode())), hash)
	assert.Equal(t, [32]byte(v.Body().Hash()), hash)

	_, err = ComputeVAAHash([]byte{1, 0, 0})
	assert.ErrorIs(t, err, vaa.ErrMalformedVAA)
	_, err = ComputeVAAHash(v.Encode()[:20])
	assert.ErrorIs(t, err, vaa.ErrMalformedVAA)

	_, w := setupWormhole(t, guardian.DefaultSet())
	pda, _, err := w.PostedVAA(v.Encode())
	require.NoError(t, err)
	expected, _, err := PostedVAAPDA(CoreBridgeProgramID, hash)
	require.NoError(t, err)
	assert.Equal(t, expected, pda)
}

func TestEmitterAddressHelpers(t *testing.T) {
	var evm [20]byte
	for i := range evm {
		evm[i] = 0xab
	}
	addr := EmitterAddressFrom20(evm)
	assert.Equal(t, make([]byte, 12), addr[:12])
	assert.Equal(t, evm[:], addr[12:])

	pk := solana.NewWallet().PublicKey()
	assert.Equal(t, pk.Bytes(), EmitterAddressFromPubkey(pk).Bytes())

	emitter, _, err := EmitterPDA(CoreBridgeProgramID)
	require.NoError(t, err)
	assert.False(t, emitter.IsZero())
}

func TestLoadConfig(t *testing.T) {
	v := viper.New()
	cfg, err := LoadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	shim := solana.NewWallet().PublicKey()
	v.Set("guardian_set_index", 4)
	v.Set("programs_dir", "/opt/programs")
	v.Set("shim_program_id", shim.String())
	v.Set("skip_programs", true)
	cfg, err = LoadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), cfg.GuardianSetIndex)
	assert.Equal(t, "/opt/programs", cfg.ProgramsDir)
	assert.Equal(t, shim, cfg.ShimProgramID)
	assert.Equal(t, CoreBridgeProgramID, cfg.CoreBridgeProgramID)
	assert.True(t, cfg.SkipPrograms)

	v.Set("core_bridge_program_id", "not-base58!")
	_, err = LoadConfig(v)
	assert.Error(t, err)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("WORMHOLE_SVM_TEST_PROGRAMS_DIR", "/from/env")

	v := viper.New()
	v.SetEnvPrefix("wormhole_svm_test")
	v.AutomaticEnv()

	cfg, err := LoadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.ProgramsDir)
}

func TestResolveProgram(t *testing.T) {
	dir := writePrograms(t)
	cfg := DefaultConfig()
	cfg.ProgramsDir = dir

	elf, path, err := cfg.ResolveProgram(DefaultShimBinary)
	require.NoError(t, err)
	assert.Equal(t, []byte("shim"), elf)
	assert.Equal(t, filepath.Join(dir, DefaultShimBinary), path)

	_, _, err = cfg.ResolveProgram("missing.so")
	assert.ErrorIs(t, err, ErrProgramNotFound)
}

func TestMemoryHostInterface(t *testing.T) {
	var _ Host = (*MemoryHost)(nil)
}

func TestMemoryHost(t *testing.T) {
	host := NewMemoryHost()
	addr := solana.NewWallet().PublicKey()

	assert.Error(t, host.AddProgram(addr, nil))

	data := []byte{1, 2, 3}
	require.NoError(t, host.SetAccount(addr, Account{Lamports: 5, Data: data}))
	data[0] = 9

	account, ok := host.GetAccount(addr)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, account.Data)

	require.NoError(t, host.RemoveAccount(addr))
	assert.ErrorIs(t, host.RemoveAccount(addr), ErrAccountNotFound)
}
