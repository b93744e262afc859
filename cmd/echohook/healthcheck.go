package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/BRAVO68WEB/echohook/interfaces/go/client"
)

func newHealthcheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Exit non-zero unless the relay at --url reports healthy",
		RunE: func(cmd *cobra.Command, args []string) error {
			url, _ := cmd.Flags().GetString("url")
			timeout, _ := cmd.Flags().GetDuration("timeout")
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			h, err := client.New(strings.TrimRight(url, "/")).Health(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (redis %s, %d channels, up %ds)\n", h.Status, h.Redis, h.SSEChannels, h.UptimeSeconds)
			if h.Status != "healthy" {
				return fmt.Errorf("relay is %s", h.Status)
			}
			return nil
		},
	}
	cmd.Flags().String("url", "http://localhost:8080", "base URL of the relay")
	cmd.Flags().Duration("timeout", 5*time.Second, "request timeout")
	return cmd
}
