package cmd

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wormholelabs-xyz/wormhole-svm-test/guardian"
	"github.com/wormholelabs-xyz/wormhole-svm-test/svm"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func field(t *testing.T, output, name string) string {
	t.Helper()
	for _, line := range strings.Split(output, "\n") {
		if strings.HasPrefix(line, name+" ") {
			return strings.TrimSpace(strings.TrimPrefix(line, name))
		}
	}
	t.Fatalf("field %q missing from output:\n%s", name, output)
	return ""
}

func TestSignThenDecode(t *testing.T) {
	signed := strings.TrimSpace(execute(t, "sign",
		"--count", "13", "--seed", "12345",
		"--sequence", "42", "--payload", "01020304"))
	require.NotEmpty(t, signed)

	out := execute(t, "decode", signed, "--count", "13", "--seed", "12345")
	assert.Equal(t, "yes", field(t, out, "verified"))
	assert.Equal(t, "01020304", field(t, out, "payload"))
	assert.Equal(t, "[0 1 2 3 4 5 6 7 8 9 10 11 12]", field(t, out, "signers"))
}

func TestGuardiansWritesKeys(t *testing.T) {
	dir := t.TempDir()
	out := execute(t, "guardians", "--count", "3", "--seed", "7", "--key-dir", dir)

	set, err := guardian.Generate(3, 7)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	for i, addr := range set.Addresses() {
		assert.Equal(t, addr.Hex(), strings.Fields(lines[i])[1])

		g, err := guardian.LoadKeyFile(filepath.Join(dir, fmt.Sprintf("guardian%d.key", i)), uint8(i))
		require.NoError(t, err)
		assert.Equal(t, addr, g.Address())
	}

	_, err = os.Stat(filepath.Join(dir, "guardian3.key"))
	assert.True(t, os.IsNotExist(err))
}

func TestAccounts(t *testing.T) {
	out := execute(t, "accounts", "--count", "2", "--seed", "1", "--guardian-set-index", "3")

	pda, bump, err := svm.GuardianSetPDA(svm.CoreBridgeProgramID, 3)
	require.NoError(t, err)
	assert.Equal(t, pda.String(), field(t, out, "address"))
	assert.Equal(t, svm.CoreBridgeProgramID.String(), field(t, out, "owner"))
	assert.Equal(t, strconv.Itoa(int(bump)), field(t, out, "bump"))

	data, err := base64.StdEncoding.DecodeString(field(t, out, "data"))
	require.NoError(t, err)
	parsed, err := svm.ParseGuardianSetData(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), parsed.Index)
	assert.Len(t, parsed.Keys, 2)
}

func TestFlagsBoundToViper(t *testing.T) {
	dir := t.TempDir()
	t.Cleanup(func() {
		require.NoError(t, rootCmd.PersistentFlags().Set("programs-dir", ""))
		require.NoError(t, accountsCmd.Flags().Set("shim-program-id", svm.VerifyVAAShimProgramID.String()))
	})

	execute(t, "accounts", "--count", "1",
		"--programs-dir", dir,
		"--shim-program-id", svm.CoreBridgeProgramID.String())

	assert.Equal(t, dir, viper.GetString("programs_dir"))
	assert.Equal(t, svm.CoreBridgeProgramID.String(), viper.GetString("shim_program_id"))
	assert.True(t, viper.GetBool("skip_programs"))
}

func TestNewLogger(t *testing.T) {
	debug, err := newLogger(true, true)
	require.NoError(t, err)
	assert.True(t, debug.Core().Enabled(zap.DebugLevel))

	info, err := newLogger(false, false)
	require.NoError(t, err)
	assert.False(t, info.Core().Enabled(zap.DebugLevel))
	assert.True(t, info.Core().Enabled(zap.InfoLevel))
}
