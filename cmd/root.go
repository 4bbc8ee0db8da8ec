package cmd

import (
	"os"
	"strings"

	dotenv "github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wormhole-svm-test",
	Short: "Synthetic Wormhole guardians and VAAs for SVM program tests",
}

func init() {
	// Tentatively load .env file
	_ = dotenv.Load()

	flags := rootCmd.PersistentFlags()
	flags.Bool("debug", false, "Log at debug level")
	flags.Bool("json", false, "Log JSON instead of console output")
	flags.String("programs-dir", "",
		"Directory holding core_bridge.so and the verify shim (default: search fixtures and target/deploy)")

	bindFlag("programs_dir", flags.Lookup("programs-dir"))

	cobra.OnInitialize(initConfig)
}

// bindFlag exposes a flag to viper, and with it to WORMHOLE_SVM_TEST_* env vars.
func bindFlag(key string, flag *pflag.Flag) {
	cobra.CheckErr(viper.BindPFlag(key, flag))
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("wormhole_svm_test")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
}

// configureLogging builds the command logger from --debug and --json and
// installs it as the zap global.
func configureLogging(cmd *cobra.Command, _ []string) *zap.Logger {
	debug, _ := cmd.Flags().GetBool("debug")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	logger, err := newLogger(debug, jsonOutput)
	if err != nil {
		logger, _ = zap.NewProduction()
		logger.Warn("Falling back to the production logger", zap.Error(err))
	}

	zap.ReplaceGlobals(logger)
	return logger
}

// newLogger logs to stderr; stdout carries command output.
func newLogger(debug, jsonOutput bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if debug {
		config = zap.NewDevelopmentConfig()
	}

	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}
	config.Level = zap.NewAtomicLevelAt(level)
	config.OutputPaths = []string{"stderr"}

	if jsonOutput {
		config.Encoding = "json"
		return config.Build()
	}

	config.Encoding = "console"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return config.Build()
}
