package svm

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/wormholelabs-xyz/wormhole-svm-test/guardian"
)

// Wormhole is the core bridge and shim state installed in a Host.
type Wormhole struct {
	CoreBridgeProgramID solana.PublicKey
	ShimProgramID       solana.PublicKey
	GuardianSetIndex    uint32
	GuardianSet         solana.PublicKey
	GuardianSetBump     uint8

	host   Host
	logger *zap.Logger
}

// Setup loads the core bridge and verify-VAA shim into host and writes the
// guardian set account for set at cfg.GuardianSetIndex.
func Setup(logger *zap.Logger, host Host, set *guardian.Set, cfg Config) (*Wormhole, error) {
	logger = logger.With(zap.String("component", "SVMSetup"))

	if !cfg.SkipPrograms {
		programs := []struct {
			id   solana.PublicKey
			name string
		}{
			{cfg.CoreBridgeProgramID, cfg.CoreBridgeBinary},
			{cfg.ShimProgramID, cfg.ShimBinary},
		}
		for _, p := range programs {
			elf, path, err := cfg.ResolveProgram(p.name)
			if err != nil {
				return nil, err
			}
			if err := host.AddProgram(p.id, elf); err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", path, err)
			}
			logger.Info("Loaded program",
				zap.String("programID", p.id.String()),
				zap.String("path", path))
		}
	}

	w := &Wormhole{
		CoreBridgeProgramID: cfg.CoreBridgeProgramID,
		ShimProgramID:       cfg.ShimProgramID,
		GuardianSetIndex:    cfg.GuardianSetIndex,
		host:                host,
		logger:              logger,
	}

	pda, bump, err := w.WriteGuardianSet(set, cfg.GuardianSetIndex)
	if err != nil {
		return nil, err
	}
	w.GuardianSet = pda
	w.GuardianSetBump = bump

	logger.Info("Wormhole setup complete",
		zap.String("guardianSet", pda.String()),
		zap.Uint8("guardianSetBump", bump),
		zap.Uint32("guardianSetIndex", cfg.GuardianSetIndex),
		zap.Int("guardians", set.Len()))

	return w, nil
}

// WriteGuardianSet writes the guardian set account for set at index. It can
// be called again to install additional sets, e.g. to test rotation.
func (w *Wormhole) WriteGuardianSet(set *guardian.Set, index uint32) (solana.PublicKey, uint8, error) {
	pda, bump, err := GuardianSetPDA(w.CoreBridgeProgramID, index)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("failed to derive guardian set PDA: %w", err)
	}

	data, err := NewGuardianSetData(set, index, 0).Serialize()
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("failed to serialize guardian set: %w", err)
	}

	if err := w.host.SetAccount(pda, Account{
		Lamports: RentExemptLamports(len(data)),
		Data:     data,
		Owner:    w.CoreBridgeProgramID,
	}); err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("failed to write guardian set: %w", err)
	}

	w.logger.Debug("Wrote guardian set",
		zap.String("account", pda.String()),
		zap.Uint32("index", index),
		zap.Strings("keys", set.KeysAsHexStrings()))

	return pda, bump, nil
}

// PostedVAA derives the posted VAA account of an encoded VAA under the core
// bridge.
func (w *Wormhole) PostedVAA(vaaBytes []byte) (solana.PublicKey, uint8, error) {
	hash, err := ComputeVAAHash(vaaBytes)
	if err != nil {
		return solana.PublicKey{}, 0, err
	}
	return PostedVAAPDA(w.CoreBridgeProgramID, hash)
}
