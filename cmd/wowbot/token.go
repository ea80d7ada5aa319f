package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ghetolay/WowBot/internal/api"
	"github.com/ghetolay/WowBot/internal/config"
	"github.com/ghetolay/WowBot/internal/crypto"
)

var tokenCmd = &cobra.Command{
	Use:   "token <subject>",
	Short: "Issue an admin API token signed with the master secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		cfg := config.Default()
		if loaded, err := config.Load(path, config.Overrides{}); err == nil {
			cfg = loaded
		}
		secret, _ := cmd.Flags().GetString("secret")
		if secret == "" {
			secret = cfg.API.MasterSecret
		}

		m, err := crypto.NewJWTManager(secret)
		if err != nil {
			return err
		}
		ttl, _ := cmd.Flags().GetDuration("ttl")
		readOnly, _ := cmd.Flags().GetBool("read-only")
		scopes := []string{api.ScopeRead, api.ScopeWrite}
		if readOnly {
			scopes = scopes[:1]
		}

		token, err := m.CreateToken(args[0], ttl, scopes...)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("secret", "", "master secret (defaults to the configured one)")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime, 0 for none")
	tokenCmd.Flags().Bool("read-only", false, "only grant read access")
	rootCmd.AddCommand(tokenCmd)
}
