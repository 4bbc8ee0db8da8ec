package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wormholelabs-xyz/wormhole-svm-test/internal/fixture"
	"github.com/wormholelabs-xyz/wormhole-svm-test/vaa"
)

var decodeCmd = &cobra.Command{
	Use:   "decode <hex>",
	Short: "Decode a VAA and verify it against a test guardian set",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	fixture.AddGuardianFlags(decodeCmd.Flags())
}

func runDecode(cmd *cobra.Command, args []string) error {
	logger := configureLogging(cmd, args)

	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(args[0]), "0x"))
	if err != nil {
		return fmt.Errorf("invalid hex: %w", err)
	}

	v, err := vaa.Decode(raw)
	if err != nil {
		return fmt.Errorf("failed to decode VAA: %w", err)
	}
	vaa.LogVAAFull(logger, v)

	flags, err := fixture.GuardianFlagsFrom(cmd.Flags())
	if err != nil {
		return err
	}
	set, err := flags.Set()
	if err != nil {
		return err
	}

	body := v.Body()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "message    %s\n", v.MessageID())
	fmt.Fprintf(out, "digest     %s\n", v.HexDigest())
	fmt.Fprintf(out, "set index  %d\n", v.GuardianSetIndex())
	fmt.Fprintf(out, "signers    %v\n", v.Signatures().Indices())
	fmt.Fprintf(out, "payload    %x\n", body.Payload)

	switch err := v.Verify(set); {
	case err == nil:
		fmt.Fprintln(out, "verified   yes")
	case errors.Is(err, vaa.ErrNoQuorum):
		if sigErr := v.VerifySignatures(set); sigErr != nil {
			return sigErr
		}
		fmt.Fprintln(out, "verified   signatures valid, no quorum")
		logger.Warn("VAA below quorum", zap.Error(err))
	default:
		return err
	}
	return nil
}
