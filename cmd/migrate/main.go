package main

import (
	"context"
	"log"

	"hiive-relay/config"
	"hiive-relay/internal/repository"
	"hiive-relay/pkg/database"
)

// Applies the queue schema and exits. Useful when the runtime database user
// is not allowed to create tables.
func main() {
	cfg := config.LoadConfig()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := repository.InitSchema(context.Background(), db); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}
	log.Println("schema applied")
}
