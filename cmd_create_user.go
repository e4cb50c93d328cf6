package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"heatpulse/api/config"
	"heatpulse/api/database"
	"heatpulse/api/models"
	"heatpulse/api/store"
	"heatpulse/api/utils"
)

func newCreateUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create-user <email> <password>",
		Short: "Create a dashboard user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			setupLogger(cfg.Server.LogLevel, cfg.Server.GinMode)

			dbClient, err := database.NewPostgresDB(cfg.Postgres)
			if err != nil {
				return fmt.Errorf("failed to initialize PostgreSQL database: %w", err)
			}
			defer dbClient.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			user, err := createUser(ctx, store.NewPostgresUserStore(dbClient.DB), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User created successfully: %s\n", user.Email)
			return nil
		},
	}
}

func createUser(ctx context.Context, users store.UserStore, email, password string) (*models.User, error) {
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user, err := users.CreateUser(ctx, email, hash)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, errors.New("user with this email already exists")
		}
		return nil, err
	}
	log.Info().Int64("user_id", user.ID).Msg("user created from CLI")
	return user, nil
}
