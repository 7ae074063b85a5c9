package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/Oleguzik/ngo-automation/internal/config"
	"github.com/Oleguzik/ngo-automation/internal/database"
	"github.com/Oleguzik/ngo-automation/internal/handler"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	router := handler.SetupRouter(db, cfg)

	addr := cfg.Host + ":" + cfg.Port
	log.Printf("RAG service listening on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
