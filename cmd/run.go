package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/vkinder/internal/vk"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Listen to the community long poll and answer users",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// run is the main command for the bot.
func run(_ *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger()
	config := mustConfig(logger)

	logger.Info("starting the vkinder", zap.String("version", version))

	app, err := setup(ctx, config, logger, nil)
	if err != nil {
		logger.Fatal("setting up the bot", zap.Error(err))
	}
	defer app.Close()

	if addr := config.Metrics.Addr; addr != "" {
		go func() {
			if err := app.metrics.Serve(ctx, addr, logger); err != nil {
				logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	err = app.vk.Listen(ctx, func(ctx context.Context, msg vk.IncomingMessage) {
		logger.Debug("incoming message", zap.Int64("from_id", msg.FromID), zap.Int64("message_id", msg.ID))
		app.bot.Dispatch(ctx, msg.FromID, msg.Text)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("long poll stopped", zap.Error(err))
		return
	}

	logger.Info("exiting", zap.String("reason", "shutdown requested"))
}
