package cli

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/harun/beacon/internal/config"
	"github.com/harun/beacon/pkg/auth"
	"github.com/harun/beacon/pkg/directory"
	"github.com/harun/beacon/pkg/location"
)

var tokenUser string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an access token for a registered user",
	Long: `Mint an access token for a registered user without a password.
The user is looked up by email or by id in the users file. Useful for
scripting against the HTTP API and the push channel.`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "email or id of the user")
	_ = tokenCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	token, err := mintToken(cfg, tokenUser)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

func mintToken(cfg *config.Config, who string) (string, error) {
	users, err := directory.Open(cfg.UsersFile, zerolog.Nop())
	if err != nil {
		return "", err
	}

	var user directory.User
	if strings.Contains(who, "@") {
		user, err = users.ByEmail(who)
	} else {
		user, err = users.ByID(location.Identity(who))
	}
	if err != nil {
		return "", fmt.Errorf("unknown user %q: %w", who, err)
	}

	tokens := auth.NewJWTManager([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
	return tokens.Generate(user.ID, user.Email)
}
