package cmd

import (
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/wormholelabs-xyz/wormhole-svm-test/internal/fixture"
	"github.com/wormholelabs-xyz/wormhole-svm-test/svm"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Print the core bridge guardian set account for a test guardian set",
	Long: `Writes the guardian set account into an in-memory SVM host and prints its
address, bump, owner, lamports and base64 data, ready to be loaded into a
test validator with --account.

Program binaries are loaded from --programs-dir (or WORMHOLE_SVM_TEST_PROGRAMS_DIR)
unless --skip-programs is set.`,
	RunE: runAccounts,
}

func init() {
	rootCmd.AddCommand(accountsCmd)

	fixture.AddGuardianFlags(accountsCmd.Flags())
	accountsCmd.Flags().Bool(
		"skip-programs",
		true,
		"Only write accounts, do not load program binaries")
	accountsCmd.Flags().String(
		"core-bridge-program-id",
		svm.CoreBridgeProgramID.String(),
		"Core bridge program ID")
	accountsCmd.Flags().String(
		"shim-program-id",
		svm.VerifyVAAShimProgramID.String(),
		"Verify-VAA shim program ID")

	bindFlag("skip_programs", accountsCmd.Flags().Lookup("skip-programs"))
	bindFlag("core_bridge_program_id", accountsCmd.Flags().Lookup("core-bridge-program-id"))
	bindFlag("shim_program_id", accountsCmd.Flags().Lookup("shim-program-id"))
}

func runAccounts(cmd *cobra.Command, args []string) error {
	logger := configureLogging(cmd, args)

	flags, err := fixture.GuardianFlagsFrom(cmd.Flags())
	if err != nil {
		return err
	}
	set, err := flags.Set()
	if err != nil {
		return err
	}

	cfg, err := svm.LoadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	cfg.GuardianSetIndex = flags.GuardianSetIndex

	host := svm.NewMemoryHost()
	wormhole, err := svm.Setup(logger, host, set, cfg)
	if err != nil {
		return fmt.Errorf("failed to set up wormhole: %w", err)
	}

	account, ok := host.GetAccount(wormhole.GuardianSet)
	if !ok {
		return fmt.Errorf("guardian set account %s missing", wormhole.GuardianSet)
	}

	logger.Info("Guardian set account",
		zap.String("address", wormhole.GuardianSet.String()),
		zap.Uint8("bump", wormhole.GuardianSetBump),
		zap.Int("dataLength", len(account.Data)))

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "address   %s\n", wormhole.GuardianSet)
	fmt.Fprintf(out, "bump      %d\n", wormhole.GuardianSetBump)
	fmt.Fprintf(out, "owner     %s\n", account.Owner)
	fmt.Fprintf(out, "lamports  %d\n", account.Lamports)
	fmt.Fprintf(out, "data      %s\n", base64.StdEncoding.EncodeToString(account.Data))
	return nil
}
