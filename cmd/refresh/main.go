package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/Aadiprofessional/edusmart-server/config"
	"github.com/Aadiprofessional/edusmart-server/internal/database"
	"github.com/Aadiprofessional/edusmart-server/internal/repository"
	"github.com/Aadiprofessional/edusmart-server/internal/service"
)

var dryRun = flag.Bool("dry-run", false, "List subscriptions due for refresh without changing them")

func main() {
	flag.Parse()

	log.Printf("Starting monthly response refresh, dry-run=%v", *dryRun)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}

	ledgerService := service.NewLedgerService(
		db,
		repository.NewUserRepository(db),
		repository.NewPlanRepository(db),
		repository.NewAddonRepository(db),
		repository.NewSubscriptionRepository(db),
		repository.NewPaymentRepository(db),
		repository.NewUsageLogRepository(db),
		cfg,
	)

	ctx := context.Background()

	if *dryRun {
		candidates, err := ledgerService.RefreshCandidates(ctx)
		if err != nil {
			log.Fatalf("Failed to list refresh candidates: %v", err)
		}
		for _, sub := range candidates {
			log.Printf("  would refresh subscription %d (user %d): %d -> %d", sub.ID, sub.UserID, sub.CreditsRemaining, sub.CreditsTotal)
		}
		log.Printf("Dry run complete, %d subscription(s) due", len(candidates))
		return
	}

	count, err := ledgerService.RefreshYearlyCredits(ctx)
	if err != nil {
		log.Printf("Refresh finished with errors: %v", err)
	}
	log.Printf("Refreshed %d subscription(s)", count)
	if err != nil {
		os.Exit(1)
	}
}
