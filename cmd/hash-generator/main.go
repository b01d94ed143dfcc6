// Command hash-generator prints bcrypt hashes for auth.api_key_hash. When no
// key is given it generates a random one and prints both.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/kaushalacts/research-ai-platform/internal/auth"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cost int

	cmd := &cobra.Command{
		Use:           "hash-generator [KEY...]",
		Short:         "Print bcrypt hashes for caller API keys",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := args
			if len(keys) == 0 {
				key, err := randomKey()
				if err != nil {
					return err
				}
				keys = []string{key}
			}

			for _, key := range keys {
				hash, err := auth.HashAPIKey(key, cost)
				if err != nil {
					return fmt.Errorf("failed to hash key: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Key: %s\nHash: %s\n\n", key, hash)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&cost, "cost", 0, "bcrypt cost (default bcrypt.DefaultCost)")
	return cmd
}

func randomKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return hex.EncodeToString(b), nil
}
