package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/partner_marketplace/middleware"
	"github.com/HSouheill/partner_marketplace/models"
)

// tokenCmd signs an access token for an existing account. Sign-in lives in
// the identity service; this is for operators and local testing.
func tokenCmd() *cobra.Command {
	var (
		userID string
		email  string
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := primitive.ObjectIDFromHex(userID); err != nil {
				return fmt.Errorf("invalid --user id %q", userID)
			}
			switch role {
			case models.RoleUser, models.RolePartner, models.RoleAdmin:
			default:
				return fmt.Errorf("unknown role %q", role)
			}
			token, err := middleware.GenerateJWT(cfg.JWTSecret, userID, email, role, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (hex)")
	cmd.Flags().StringVar(&email, "email", "", "user email")
	cmd.Flags().StringVar(&role, "role", models.RoleUser, "user, partner or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
