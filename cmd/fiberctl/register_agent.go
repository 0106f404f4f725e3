package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fibermesh/internal/bridge"
	"fibermesh/internal/config"
	"fibermesh/internal/dataclient"
	"fibermesh/internal/reconciler"
	"fibermesh/internal/walletpool"
	"fibermesh/internal/workflow"
)

func registerAgentCmd() *cobra.Command {
	var envFile, displayName, platform, platformUserID string

	cmd := &cobra.Command{
		Use:   "register-agent",
		Short: "register a new AgentIdentity fiber and activate it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			data := dataclient.New([]string{cfg.DL1URL}, cfg.GL0URL)
			recon := reconciler.New(data, reconciler.DefaultConfig())
			engine := bridge.New(recon, workflow.Default())

			wallets, err := walletpool.Open(cfg.WalletPoolPath, 0)
			if err != nil {
				return err
			}
			defer wallets.Close()

			priv, err := wallets.Acquire()
			if err != nil {
				return err
			}

			res, err := engine.RegisterAgent(cmd.Context(), bridge.RegisterAgentInput{
				PrivateKey:     priv,
				DisplayName:    displayName,
				Platform:       platform,
				PlatformUserID: platformUserID,
			})
			if err != nil {
				return err
			}
			if _, err := recon.WaitForFiberVisible(cmd.Context(), res.FiberID); err != nil {
				return fmt.Errorf("waiting for fiber visibility: %w", err)
			}
			if _, err := engine.ActivateAgent(cmd.Context(), bridge.ActivateAgentInput{PrivateKey: priv, FiberID: res.FiberID}); err != nil {
				return fmt.Errorf("activating agent: %w", err)
			}

			wallets.Release(res.Address, res.FiberID, time.Now())
			fmt.Printf("registered and activated agent %s (fiber %s)\n", res.Address, res.FiberID)
			return nil
		},
	}
	cmd.Flags().StringVar(&envFile, "env", ".env", "path to a .env file to load")
	cmd.Flags().StringVar(&displayName, "display-name", "", "agent display name")
	cmd.Flags().StringVar(&platform, "platform", "cli", "originating platform")
	cmd.Flags().StringVar(&platformUserID, "platform-user-id", "", "platform-specific user id")
	return cmd
}
