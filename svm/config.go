package svm

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/viper"
)

const (
	DefaultCoreBridgeBinary = "core_bridge.so"
	DefaultShimBinary       = "wormhole_verify_vaa_shim.so"
)

// DefaultSearchPaths are probed in order for program binaries when no
// programs directory is configured. Relative paths resolve against the
// working directory, which for `go test` is the package directory.
var DefaultSearchPaths = []string{
	"fixtures",
	"target/deploy",
	"../target/deploy",
	"../../target/deploy",
}

// Config controls Setup.
type Config struct {
	GuardianSetIndex    uint32
	ProgramsDir         string // only directory searched when set
	CoreBridgeProgramID solana.PublicKey
	ShimProgramID       solana.PublicKey
	CoreBridgeBinary    string
	ShimBinary          string
	SkipPrograms        bool // write accounts only
}

func DefaultConfig() Config {
	return Config{
		CoreBridgeProgramID: CoreBridgeProgramID,
		ShimProgramID:       VerifyVAAShimProgramID,
		CoreBridgeBinary:    DefaultCoreBridgeBinary,
		ShimBinary:          DefaultShimBinary,
	}
}

// LoadConfig reads Config from v, falling back to DefaultConfig for unset
// keys. Keys: guardian_set_index, programs_dir, core_bridge_program_id,
// shim_program_id, core_bridge_binary, shim_binary, skip_programs.
func LoadConfig(v *viper.Viper) (Config, error) {
	cfg := DefaultConfig()

	cfg.GuardianSetIndex = v.GetUint32("guardian_set_index")
	cfg.ProgramsDir = v.GetString("programs_dir")
	cfg.SkipPrograms = v.GetBool("skip_programs")

	if id := v.GetString("core_bridge_program_id"); id != "" {
		pk, err := solana.PublicKeyFromBase58(id)
		if err != nil {
			return Config{}, fmt.Errorf("invalid core bridge program ID: %w", err)
		}
		cfg.CoreBridgeProgramID = pk
	}
	if id := v.GetString("shim_program_id"); id != "" {
		pk, err := solana.PublicKeyFromBase58(id)
		if err != nil {
			return Config{}, fmt.Errorf("invalid shim program ID: %w", err)
		}
		cfg.ShimProgramID = pk
	}
	if name := v.GetString("core_bridge_binary"); name != "" {
		cfg.CoreBridgeBinary = name
	}
	if name := v.GetString("shim_binary"); name != "" {
		cfg.ShimBinary = name
	}

	return cfg, nil
}

// ResolveProgram finds and reads the binary named name. It returns the path
// the binary was read from.
func (c Config) ResolveProgram(name string) ([]byte, string, error) {
	dirs := DefaultSearchPaths
	if c.ProgramsDir != "" {
		dirs = []string{c.ProgramsDir}
	}

	for _, dir := range dirs {
		path := filepath.Join(dir, name)
		elf, err := os.ReadFile(path)
		if err == nil {
			return elf, path, nil
		}
		if !os.IsNotExist(err) {
			return nil, "", fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	return nil, "", fmt.Errorf("%w: %s (searched %v)", ErrProgramNotFound, name, dirs)
}
