package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ehr/hospital/internal/platform/sandbox"
)

func sandboxCmd(f *rootFlags) *cobra.Command {
	var port string
	var seed int64
	var patients int
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Serve a seeded in-memory hospital API for local use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(f)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			if !cmd.Flags().Changed("port") {
				port = cfg.SandboxPort
			}
			seedCfg := sandbox.DefaultSeedConfig()
			seedCfg.Seed = cfg.SandboxSeed
			if cmd.Flags().Changed("seed") {
				seedCfg.Seed = seed
			}
			if patients > 0 {
				seedCfg.PatientCount = patients
			}

			srv, err := sandbox.New(sandbox.Options{
				SigningKey:     cfg.SigningKey(),
				Seed:           seedCfg,
				RequestTimeout: 30 * time.Second,
				OnPasswordReset: func(email, uidb64, token string) {
					logger.Info().
						Str("email", email).
						Str("uid", uidb64).
						Str("token", token).
						Msg("password reset requested")
				},
			}, logger)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Sandbox API on http://localhost:%s/api (password %q for admin, doctor, nurse, reception)\n", port, sandbox.DefaultPassword)

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start(net.JoinHostPort("", port))
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(quit)

			select {
			case err := <-errCh:
				srv.Close()
				return err
			case <-quit:
			}

			logger.Info().Msg("shutting down sandbox")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	}
	cmd.Flags().StringVar(&port, "port", "8000", "Port to listen on (overrides SANDBOX_PORT)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed for generated data (overrides SANDBOX_SEED)")
	cmd.Flags().IntVar(&patients, "patients", 0, "Number of patients to generate")
	return cmd
}
