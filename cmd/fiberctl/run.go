package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"fibermesh/internal/bridge"
	"fibermesh/internal/config"
	"fibermesh/internal/dataclient"
	"fibermesh/internal/orchestrator"
	"fibermesh/internal/population"
	"fibermesh/internal/reconciler"
	"fibermesh/internal/walletpool"
	"fibermesh/internal/workflow"
)

func runCmd() *cobra.Command {
	var envFile string
	var mode string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "start the orchestrator's generational tick loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logrus.StandardLogger()

			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			if mode != "" {
				cfg.Mode = mode
			}

			data := dataclient.New([]string{cfg.DL1URL}, cfg.GL0URL)
			recon := reconciler.New(data, reconciler.DefaultConfig())
			workflows := workflow.Default()
			engine := bridge.New(recon, workflows)

			wallets, err := walletpool.Open(cfg.WalletPoolPath, 10*time.Second)
			if err != nil {
				return err
			}
			defer wallets.Close()

			pop := population.New()
			reg := orchestrator.NewRegistry()
			orch := orchestrator.New(engine, data, pop, reg, workflows, wallets, cfg.OrchestratorConfig(), log, time.Now().UnixNano())

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return orch.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&envFile, "env", ".env", "path to a .env file to load")
	cmd.Flags().StringVar(&mode, "mode", "", "override MODE (standard|weighted|high-throughput)")
	return cmd
}
