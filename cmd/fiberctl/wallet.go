package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fibermesh/internal/config"
	"fibermesh/internal/walletpool"
)

func walletCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "wallet"}
	cmd.AddCommand(walletPoolCmd())
	return cmd
}

func walletPoolCmd() *cobra.Command {
	var envFile string
	var generate int

	cmd := &cobra.Command{
		Use:   "pool",
		Short: "inspect or generate wallet pool entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			pool, err := walletpool.Open(cfg.WalletPoolPath, 0)
			if err != nil {
				return err
			}
			defer pool.Close()

			for i := 0; i < generate; i++ {
				if _, err := pool.Acquire(); err != nil {
					return err
				}
			}
			if err := pool.Flush(); err != nil {
				return err
			}
			fmt.Printf("wallet pool at %s: %d wallets\n", cfg.WalletPoolPath, pool.Count())
			return nil
		},
	}
	cmd.Flags().StringVar(&envFile, "env", ".env", "path to a .env file to load")
	cmd.Flags().IntVar(&generate, "generate", 0, "generate N fresh wallets and persist them")
	return cmd
}
