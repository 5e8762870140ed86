package main

import (
	"fmt"

	"github.com/cyphera/grantpay/internal/interaction"
	"github.com/spf13/cobra"
)

func hashCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Compute or check an interaction finish hash",
		Long: `Hash computes the GNAP interaction hash an authorization server sends with the
finish redirect. With --expect it instead checks a received hash and exits non-zero on mismatch.`,
		Args: cobra.NoArgs,
		RunE: runHash,
	}

	cmd.Flags().String("client-nonce", "", "Nonce sent in the grant request")
	cmd.Flags().String("interact-nonce", "", "Finish nonce returned by the authorization server")
	cmd.Flags().String("interact-ref", "", "interact_ref from the finish redirect")
	cmd.Flags().String("auth-server", "", "Authorization server URL")
	cmd.Flags().String("expect", "", "Received hash to check")
	for _, name := range []string{"client-nonce", "interact-nonce", "interact-ref", "auth-server"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func runHash(cmd *cobra.Command, args []string) error {
	clientNonce, _ := cmd.Flags().GetString("client-nonce")
	interactNonce, _ := cmd.Flags().GetString("interact-nonce")
	interactRef, _ := cmd.Flags().GetString("interact-ref")
	authServer, _ := cmd.Flags().GetString("auth-server")
	expect, _ := cmd.Flags().GetString("expect")

	if expect == "" {
		fmt.Fprintln(cmd.OutOrStdout(), interaction.ComputeHash(clientNonce, interactNonce, interactRef, authServer))
		return nil
	}

	if err := interaction.Check(expect, clientNonce, interactNonce, interactRef, authServer); err != nil {
		fmt.Fprintln(cmd.OutOrStdout(), "MISMATCH")
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "MATCH")
	return nil
}
