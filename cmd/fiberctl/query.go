package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"fibermesh/internal/config"
)

func queryCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "query"}
	cmd.AddCommand(queryRejectionsCmd())
	return cmd
}

func queryRejectionsCmd() *cobra.Command {
	var envFile, fiberID, errorCode string
	var limit int

	cmd := &cobra.Command{
		Use:   "rejections",
		Short: "list indexed rejections from C6's query API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}

			q := url.Values{}
			if fiberID != "" {
				q.Set("fiberId", fiberID)
			}
			if errorCode != "" {
				q.Set("errorCode", errorCode)
			}
			if limit > 0 {
				q.Set("limit", fmt.Sprintf("%d", limit))
			}

			resp, err := http.Get(cfg.IndexerURL + "/rejections?" + q.Encode())
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			var body any
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				return err
			}
			out, err := json.MarshalIndent(body, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&envFile, "env", ".env", "path to a .env file to load")
	cmd.Flags().StringVar(&fiberID, "fiber-id", "", "filter by fiberId")
	cmd.Flags().StringVar(&errorCode, "error-code", "", "filter by rejection error code")
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows to return")
	return cmd
}
