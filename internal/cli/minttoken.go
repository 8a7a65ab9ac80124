package cli

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/rcollings/realtyads/internal/auth"
	"github.com/rcollings/realtyads/internal/config"
)

func newMintTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mint-token <user-id>",
		Short: "Mint a bearer token for a user id",
		Long:  "Mint a signed bearer token for the given user id, using the configured JWT secret. Useful for operators and API testing.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}

			userID, err := primitive.ObjectIDFromHex(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id %q: %w", args[0], err)
			}

			token, err := auth.Mint(cfg.Auth.JWTSecret, userID)
			if err != nil {
				return err
			}

			fmt.Println(token)
			return nil
		},
	}
}
