package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"chatgate/internal/config"
	"chatgate/internal/constants"
	"chatgate/internal/logger"
	"chatgate/internal/transport"
	"chatgate/pkg/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	configFile     string
	usePairingCode bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "chatgate",
		Short:   "Chat protocol event gateway",
		Long:    "chatgate receives chat events, drops duplicates, normalizes messages and routes prefixed commands to handlers",
		Version: version,
		RunE:    serveCmd().RunE,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (required)")
	rootCmd.PersistentFlags().BoolVar(&usePairingCode, "use-pairing-code", false, "Link the session with a pairing code instead of a QR code")

	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			earlyLog := logging.NewEarlyLog()

			if configFile == "" {
				configFile = os.Getenv("CONFIG_FILE")
				if configFile == "" {
					earlyLog.Error("Config file is required. Use --config flag or CONFIG_FILE environment variable")
					return fmt.Errorf("config file is required")
				}
			}

			cfg, err := config.Load(configFile)
			if err != nil {
				earlyLog.Error("Failed to load config: %v", err)
				return err
			}

			if usePairingCode {
				if err := enablePairingCode(cfg, os.Stdin, os.Stdout); err != nil {
					earlyLog.Error("Failed to configure pairing code: %v", err)
					return err
				}
			}

			log, err := logger.New(cfg.Logging)
			if err != nil {
				earlyLog.Error("Failed to init logger: %v", err)
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log.InfowCtx(ctx, "Starting chatgate", "transport", cfg.Transport.Type, "auth_mode", cfg.Transport.AuthMode)

			app := NewApp(cfg, log, os.Stdout)
			if err := app.Initialize(ctx); err != nil {
				log.Fatalf("Failed to initialize application: %v", err)
			}

			runErr := app.Run(ctx)

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer shutdownCancel()
			if err := app.Shutdown(shutdownCtx); err != nil {
				log.ErrorwCtx(shutdownCtx, "Shutdown finished with errors", "error", err)
			}

			if runErr != nil && !errors.Is(runErr, context.Canceled) {
				log.ErrorwCtx(ctx, "Gateway stopped with error", "error", runErr)
				return runErr
			}
			log.InfowCtx(ctx, "Gateway shutdown complete")
			return nil
		},
	}
}

// enablePairingCode switches the session to pairing-code linking, asking for
// the bot's phone number when the config does not carry one.
func enablePairingCode(cfg *config.Config, in io.Reader, out io.Writer) error {
	cfg.Transport.AuthMode = constants.AuthModePairingCode

	if cfg.Transport.PairingPhone == "" {
		fmt.Fprint(out, "Enter the phone number for the bot in this format 6282xxxxxxxx.\nNumber: ")
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read phone number: %w", err)
		}
		cfg.Transport.PairingPhone = transport.SanitizePhone(strings.TrimSpace(line))
	}

	return config.ValidateStatic(cfg)
}
