package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "entitlements-service",
	Short: "Subscription entitlement and usage-metering service",
	Long:  "Gates marketplace actions against subscription plan quotas, computes listing visibility delays and manages subscription lifecycle.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
