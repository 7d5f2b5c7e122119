// Command mockapi runs the development backend the questline client talks to.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"questline/internal/achievements"
	"questline/internal/config"
	"questline/internal/database"
	"questline/internal/mockapi"
	"questline/internal/seed"
)

func main() {
	shouldSeed := flag.Bool("seed", true, "Seed demo data on startup")
	shouldClean := flag.Bool("clean", false, "Clear all data before seeding")
	numUsers := flag.Int("users", 12, "Number of demo users to create")
	numPosts := flag.Int("posts", 6, "Posts per community")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "Lifetime of the printed dev token")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	catalog, err := achievements.Load(cfg.AchievementCatalog)
	if err != nil {
		log.Fatalf("Failed to load achievement catalog: %v", err)
	}

	db, err := database.Connect(cfg, mockapi.Schema()...)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if *shouldSeed {
		sum, err := seed.NewSeeder(db, seed.Options{
			Users:             *numUsers,
			PostsPerCommunity: *numPosts,
			Clean:             *shouldClean,
			DevUserID:         cfg.UserID,
			Catalog:           catalog,
		}).Run()
		if err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
		log.Printf("Seeded %d users, %d posts, %d comments", len(sum.UserIDs), sum.Posts, sum.Comments)
	}

	if cfg.UserID != "" {
		token, err := mockapi.MintToken(cfg.JWTSecret, cfg.UserID, *tokenTTL)
		if err != nil {
			log.Fatalf("Failed to mint dev token: %v", err)
		}
		log.Printf("Dev token for %s (export as API_TOKEN):\n%s", cfg.UserID, token)
	}

	srv := mockapi.NewServer(cfg, mockapi.NewStore(db), catalog)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	log.Printf("Server starting on port %s...", cfg.Port)
	if err := srv.Start(); err != nil {
		log.Fatal(err)
	}
}
