package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"aivision/internal/config"
	"aivision/internal/repository/sqlite"
	"aivision/internal/services/auth"

	"github.com/joho/godotenv"
)

// migrate creates or upgrades the database schema and can seed an account.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	dbPath := flag.String("db", cfg.DatabasePath, "Database path")
	email := flag.String("email", "", "Create an account with this email")
	password := flag.String("password", "", "Password for the new account")
	name := flag.String("name", "", "Display name for the new account")
	flag.Parse()

	fmt.Printf("Migrating database %s\n", *dbPath)

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	fmt.Println("Schema is up to date")

	if *email == "" {
		return
	}

	users := sqlite.NewUserRepository(db)
	service := auth.NewService(users, auth.NewTokenIssuer(cfg.AccessTokenSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute))
	user, err := service.SignUp(*email, *password, *name)
	if err != nil {
		log.Fatalf("Failed to create account: %v", err)
	}

	fmt.Printf("Created account %s (%s)\n", user.Email, user.ID)
}
