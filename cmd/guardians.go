package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wormholelabs-xyz/wormhole-svm-test/guardian"
	"github.com/wormholelabs-xyz/wormhole-svm-test/internal/fixture"
)

var guardiansCmd = &cobra.Command{
	Use:   "guardians",
	Short: "Print the addresses of a test guardian set",
	Long: `Derives a guardian set from --count and --seed (or the default devnet
guardian when --count is 0) and prints one "index address" line per guardian.

With --key-dir the secret keys are also written as armored guardian key files
readable by guardiand.`,
	RunE: runGuardians,
}

func init() {
	rootCmd.AddCommand(guardiansCmd)

	fixture.AddGuardianFlags(guardiansCmd.Flags())
	guardiansCmd.Flags().String(
		"key-dir",
		"",
		"Directory to write guardian<N>.key armored key files to")
}

func runGuardians(cmd *cobra.Command, args []string) error {
	logger := configureLogging(cmd, args)

	flags, err := fixture.GuardianFlagsFrom(cmd.Flags())
	if err != nil {
		return err
	}
	set, err := flags.Set()
	if err != nil {
		return fmt.Errorf("failed to create guardian set: %w", err)
	}

	quorum, _ := set.QuorumCount()
	logger.Info("Guardian set",
		zap.Int("guardians", set.Len()),
		zap.Int("quorum", quorum),
		zap.Uint64("seed", flags.Seed))

	for _, g := range set.Guardians() {
		fmt.Fprintf(cmd.OutOrStdout(), "%d %s\n", g.Index(), g.Address().Hex())
	}

	keyDir, _ := cmd.Flags().GetString("key-dir")
	if keyDir == "" {
		return nil
	}

	for _, g := range set.Guardians() {
		path := filepath.Join(keyDir, fmt.Sprintf("guardian%d.key", g.Index()))
		desc := fmt.Sprintf("test guardian %d (seed %d)", g.Index(), flags.Seed)
		if err := guardian.WriteKeyFile(path, g, desc); err != nil {
			return err
		}
		logger.Info("Wrote guardian key", zap.String("path", path), zap.Uint8("index", g.Index()))
	}
	return nil
}
