package main

import (
	"context"
	"log"

	"ai-paperchat-be/internal/bootstrap"
	"ai-paperchat-be/internal/config"
	"ai-paperchat-be/internal/server"
	"ai-paperchat-be/internal/tracer"
	"ai-paperchat-be/pkg/database"
)

func main() {
	// 0. Initialize Tracer (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)

	// 4. Start Background Services
	go func() {
		log.Println("Background: Starting paper ingestion consumer...")
		if err := container.IngestConsumer.Consume(context.Background()); err != nil {
			log.Printf("Background ingestion consumer error: %v", err)
		}
	}()

	// 5. Initialize Server
	srv := server.New(cfg, container)

	// 6. Run Server
	log.Fatal(srv.Run())
}
