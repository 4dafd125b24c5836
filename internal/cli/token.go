package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"live-quiz-service/internal/auth"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/domain"
)

// NewTokenCmd prints a signed access token, for presenters and local testing.
func NewTokenCmd(configPath *string) *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if subject == "" {
				return fmt.Errorf("--subject is required")
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("auth.jwtSecret is not configured")
			}
			switch domain.Role(role) {
			case domain.RolePlayer, domain.RolePresenter, domain.RoleAdmin:
			default:
				return fmt.Errorf("unknown role %q", role)
			}

			tok, err := auth.NewJWT(cfg.Auth.JWTSecret, cfg.Auth.Issuer).Sign(subject, domain.Role(role), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "identity carried by the token")
	cmd.Flags().StringVar(&role, "role", string(domain.RolePresenter), "player, presenter or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	return cmd
}
