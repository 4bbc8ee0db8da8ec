package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wormholelabs-xyz/wormhole-svm-test/internal/fixture"
	"github.com/wormholelabs-xyz/wormhole-svm-test/vaa"
)

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Build and sign a VAA, printing it as hex",
	Long: `Builds a VAA body from the flags, signs it with the selected guardian set and
prints the encoded VAA as hex on stdout.

--signers restricts signing to a subset of guardian indices, which allows
producing VAAs below quorum for negative tests.`,
	RunE: runSign,
}

func init() {
	rootCmd.AddCommand(signCmd)
	fixture.AddRecipeFlags(signCmd.Flags())
}

func runSign(cmd *cobra.Command, args []string) error {
	logger := configureLogging(cmd, args)

	recipe, err := fixture.RecipeFrom(cmd.Flags())
	if err != nil {
		return err
	}

	v, set, err := recipe.Build()
	if err != nil {
		return fmt.Errorf("failed to sign VAA: %w", err)
	}

	vaa.LogVAAFull(logger, v)
	logger.Info("Signed VAA",
		zap.String("messageID", v.MessageID()),
		zap.String("digest", v.HexDigest()),
		zap.Int("signatures", v.Signatures().Len()),
		zap.Bool("quorum", v.Signatures().MeetsQuorum(set)))

	fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(v.Encode()))
	return nil
}
