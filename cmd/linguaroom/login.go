package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Verify credentials against the platform",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()
		_, user, err := authedClient(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("logged in as %s (%s)\n", user.DisplayName, user.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
}
