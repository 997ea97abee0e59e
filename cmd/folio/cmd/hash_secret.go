package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmcleod/folio/config"
	"github.com/jmcleod/folio/guard"
)

var hashSecretWrite bool

var hashSecretCmd = &cobra.Command{
	Use:   "hash-secret",
	Short: "Hash an admin secret for guard.secret_hash",
	Long: `Prompts for the admin secret twice and prints its argon2id hash. With
--write the hash is stored in the configuration file instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := newPrompter(cmd)
		secret, err := p.secret("Admin secret: ")
		if err != nil {
			return err
		}
		if secret == "" {
			return errors.New("secret must not be empty")
		}
		confirm, err := p.secret("Confirm secret: ")
		if err != nil {
			return err
		}
		if secret != confirm {
			return errors.New("secrets do not match")
		}

		hash, err := guard.HashSecret(secret)
		if err != nil {
			return err
		}
		if !hashSecretWrite {
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		}

		// Re-read without env overrides so tokens from the environment
		// are not written to disk.
		fileCfg, err := config.Read(cfgPath)
		if err != nil {
			return err
		}
		fileCfg.Guard.SecretHash = hash
		if err := config.Save(cfgPath, fileCfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Secret hash written to %s\n", cfgPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashSecretCmd)
	hashSecretCmd.Flags().BoolVar(&hashSecretWrite, "write", false, "Store the hash in the configuration file")
}
