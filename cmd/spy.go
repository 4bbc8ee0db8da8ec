package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wormholelabs-xyz/wormhole-svm-test/internal/fixture"
	"github.com/wormholelabs-xyz/wormhole-svm-test/spy"
)

var spyCmd = &cobra.Command{
	Use:   "spy",
	Short: "Serve fixture VAAs over the spy gRPC interface",
	Long: `Starts a spy gRPC service that relayers can subscribe to as they would to a
guardian spy. Every --interval a VAA is built from the recipe flags, signed and
published; the sequence increments with each VAA.`,
	RunE: runSpy,
}

func init() {
	rootCmd.AddCommand(spyCmd)

	fixture.AddRecipeFlags(spyCmd.Flags())
	spyCmd.Flags().String(
		"listen",
		"localhost:7073",
		"Listen address for the spy gRPC service")
	spyCmd.Flags().Duration(
		"interval",
		5*time.Second,
		"Time between published VAAs")
}

func runSpy(cmd *cobra.Command, args []string) error {
	logger := configureLogging(cmd, args)

	recipe, err := fixture.RecipeFrom(cmd.Flags())
	if err != nil {
		return err
	}
	listen, _ := cmd.Flags().GetString("listen")
	interval, _ := cmd.Flags().GetDuration("interval")
	if interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}

	lis, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", listen, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		logger.Info("Received shutdown signal")
		cancel()
	}()

	server := spy.NewServer(logger)
	go publishLoop(ctx, logger, server, recipe, interval)

	return server.Serve(ctx, lis)
}

func publishLoop(ctx context.Context, logger *zap.Logger, server *spy.Server, recipe fixture.Recipe, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v, _, err := recipe.Build()
			if err != nil {
				logger.Error("Failed to build VAA", zap.Error(err))
				return
			}
			server.Publish(v)
			logger.Info("Published VAA",
				zap.String("messageID", v.MessageID()),
				zap.Int("subscribers", server.SubscriberCount()))
			recipe.Sequence++
		}
	}
}
