package main

import (
	"log"
	"os"

	"ai-paperchat-be/internal/model"
	"ai-paperchat-be/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	// Load Environment Variables
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Seeding demo users...")

	// Fixed ids so the walkthrough client's bearer token resolves to a real row.
	users := []model.User{
		{
			Id:       uuid.MustParse("a2b94f4c-b674-433b-90be-65a91a37e7a3"),
			Email:    "demo@paperchat.local",
			FullName: "Demo Researcher",
			Role:     "user",
			Status:   "active",
		},
		{
			Id:       uuid.MustParse("7f1c61d2-5f0a-4b3e-9c8d-2a94d1d0b6e5"),
			Email:    "reviewer@paperchat.local",
			FullName: "Second Reviewer",
			Role:     "user",
			Status:   "active",
		},
	}

	for _, u := range users {
		var existing model.User
		if err := db.Where("id = ?", u.Id).First(&existing).Error; err == nil {
			log.Printf("User '%s' already exists, skipping...", u.Email)
			continue
		}

		if err := db.Create(&u).Error; err != nil {
			log.Printf("Error creating user '%s': %v", u.Email, err)
		} else {
			log.Printf("Created user: %s (%s)", u.FullName, u.Email)
		}
	}

	log.Println("User seeding completed!")
}
