package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/duetapp/duet/internal/config"
	"github.com/duetapp/duet/internal/couple"
	"github.com/duetapp/duet/internal/points"
	"github.com/duetapp/duet/internal/user"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the achievement catalog and a demo couple",
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

var achievementCatalog = []points.Achievement{
	{Code: "first_steps", Title: "First Steps", Description: "Earn your first 10 points.", Icon: "👟", Threshold: 10},
	{Code: "team_player", Title: "Team Player", Description: "Reach 50 points together.", Icon: "🤝", Threshold: 50},
	{Code: "centurion", Title: "Centurion", Description: "Reach 100 points and level 2.", Icon: "💯", Threshold: 100},
	{Code: "homemaker", Title: "Homemaker", Description: "Reach 250 points keeping the household running.", Icon: "🏡", Threshold: 250},
	{Code: "power_couple", Title: "Power Couple", Description: "Reach 500 points.", Icon: "⚡", Threshold: 500},
	{Code: "inseparable", Title: "Inseparable", Description: "Reach 1000 points.", Icon: "💞", Threshold: 1000},
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	pointsStore := points.NewStore(pool)
	for i := range achievementCatalog {
		a, err := pointsStore.UpsertAchievement(ctx, &achievementCatalog[i])
		if err != nil {
			return err
		}
		slog.Info("installed achievement", "code", a.Code, "threshold", a.Threshold)
	}

	userStore := user.NewStore(pool)
	coupleStore := couple.NewStore(pool)

	// Skip demo accounts when they already exist.
	if existing, err := userStore.GetByEmail(ctx, "alex@example.com"); err == nil && existing != nil {
		slog.Info("demo couple already exists, skipping")
		return nil
	}

	alex, err := userStore.Create(ctx, user.CreateUserInput{
		Email:    "alex@example.com",
		Password: "password123",
		Name:     "Alex",
	})
	if err != nil {
		return fmt.Errorf("creating demo user: %w", err)
	}
	sam, err := userStore.Create(ctx, user.CreateUserInput{
		Email:    "sam@example.com",
		Password: "password123",
		Name:     "Sam",
	})
	if err != nil {
		return fmt.Errorf("creating demo user: %w", err)
	}

	c, err := coupleStore.Create(ctx, alex.ID)
	if err != nil {
		return fmt.Errorf("creating demo couple: %w", err)
	}
	if _, err := coupleStore.Redeem(ctx, c.PairingCode, sam.ID); err != nil {
		return fmt.Errorf("pairing demo couple: %w", err)
	}

	slog.Info("created demo couple", "user_a", alex.Email, "user_b", sam.Email)
	fmt.Printf("\n=== Demo Data Seeded ===\n")
	fmt.Printf("Achievements: %d installed\n", len(achievementCatalog))
	fmt.Printf("Accounts:     alex@example.com / sam@example.com (password123)\n")
	fmt.Printf("\nTry it:\n")
	fmt.Printf("  curl -X POST http://localhost:8080/api/v1/auth/login -d '{\"email\":\"alex@example.com\",\"password\":\"password123\"}'\n")

	return nil
}
