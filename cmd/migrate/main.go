package main

import (
	"log"

	"ai-report-be/internal/config"
	"ai-report-be/internal/model"
	"ai-report-be/pkg/database"
)

func main() {
	cfg := config.Load()

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, true)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Step 1: Setting up extensions...")
	setupSQL := []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto;`,
	}
	for _, sql := range setupSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute setup SQL: %v. Continuing...", err)
		}
	}
	if err := database.EnsureVectorExtension(db); err != nil {
		log.Fatalf("Error: pgvector extension is required: %v", err)
	}

	log.Println("Step 2: Running AutoMigrate...")
	models := []interface{}{
		&model.Document{},
		&model.DocumentChunk{},
		&model.Report{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}

	log.Println("Step 3: Creating indexes...")
	postMigrationSQL := []string{
		`CREATE INDEX IF NOT EXISTS idx_document_chunks_embedding
		 ON document_chunks USING hnsw (embedding_value vector_cosine_ops);`,
		`CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports (created_at DESC);`,
	}
	for _, sql := range postMigrationSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute post-migration SQL: %v", err)
		}
	}

	log.Println("Success: database migration completed.")
}
