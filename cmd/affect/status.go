package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"
	"github.com/teslashibe/go-affect/internal/httpc"
	"github.com/teslashibe/go-affect/pkg/web"
)

func newStatusCmd(a *app) *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			var st web.Status
			url := strings.TrimRight(server, "/") + "/api/status"
			if err := httpc.GetJSON(cmd.Context(), url, &st); err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		},
	}

	cmd.Flags().StringVarP(&server, "server", "s", "http://localhost:8080", "server base URL")
	return cmd
}
