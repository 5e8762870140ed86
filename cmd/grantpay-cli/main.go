package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	// A local .env may carry QR_SIGNING_SECRET for terminals.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "grantpay-cli",
		Short:         "GrantPay - offline tools for vendor terminals and operators",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(bundleCmd())
	rootCmd.AddCommand(hashCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
