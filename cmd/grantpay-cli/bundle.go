package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/cyphera/grantpay/internal/qrbundle"
	"github.com/spf13/cobra"
)

const secretEnvVar = "QR_SIGNING_SECRET"

func bundleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Work with signed customer QR bundles",
	}
	cmd.AddCommand(bundleVerifyCmd())
	return cmd
}

func bundleVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [file]",
		Short: "Verify a scanned bundle without calling the API",
		Long: `Verify checks a bundle's HMAC signature with the shared signing secret.
The secret is read from --secret or the QR_SIGNING_SECRET environment variable.
Use "-" as the file to read the bundle from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: runBundleVerify,
	}

	cmd.Flags().StringP("secret", "s", "", "Signing secret (defaults to $"+secretEnvVar+")")
	cmd.Flags().BoolP("json", "j", false, "Output as JSON")

	return cmd
}

type verifyOutput struct {
	Valid  bool             `json:"valid"`
	Bundle *qrbundle.Bundle `json:"bundle,omitempty"`
}

func runBundleVerify(cmd *cobra.Command, args []string) error {
	secret, _ := cmd.Flags().GetString("secret")
	if secret == "" {
		secret = os.Getenv(secretEnvVar)
	}
	if secret == "" {
		return fmt.Errorf("no signing secret: pass --secret or set %s", secretEnvVar)
	}

	raw, err := readInput(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}

	bundle, valid := qrbundle.NewBundler(nil, []byte(secret)).ParseAndVerify(raw)
	out := cmd.OutOrStdout()

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		result := verifyOutput{Valid: valid}
		if valid {
			result.Bundle = bundle
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else {
		printVerification(out, bundle, valid)
	}

	if !valid {
		return fmt.Errorf("bundle signature is invalid")
	}
	return nil
}

func printVerification(w io.Writer, bundle *qrbundle.Bundle, valid bool) {
	if !valid {
		fmt.Fprintln(w, "INVALID")
		return
	}

	fmt.Fprintln(w, "VALID")
	fmt.Fprintf(w, "  Customer:  %s\n", bundle.CustomerID)
	fmt.Fprintf(w, "  Generated: %s\n", bundle.GeneratedAt)
	if len(bundle.Grants) == 0 {
		fmt.Fprintln(w, "  Grants:    (none)")
		return
	}
	fmt.Fprintln(w, "  Grants:")
	for _, g := range bundle.Grants {
		fmt.Fprintf(w, "    %s  %-20s limit %s/day  expires %s\n", g.GrantID, g.VendorName, g.DailyLimit, g.ExpiresAt)
	}
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle: %w", err)
	}
	return raw, nil
}
