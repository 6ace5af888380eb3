// Command verify-db-connection checks Postgres reachability and confirms the
// bridge tables exist. Useful as a deploy-time smoke test before starting the
// relayer.
package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"

	"bridge-backend/internal/config"
)

func main() {
	fmt.Println("🔍 Verifying database connection...")

	if err := config.LoadConfig(os.Getenv("CONFIG_PATH")); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	dsn := config.AppConfig.Database.DSN
	if dsn == "" {
		log.Fatal("Database DSN is not configured")
	}

	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	var dbName string
	if err := sqlDB.QueryRow("SELECT current_database()").Scan(&dbName); err != nil {
		log.Fatalf("Failed to get database name: %v", err)
	}
	fmt.Printf("📋 Connected to database: %s\n", dbName)

	tables := []string{"transfer_intents", "pending_transactions", "stranded_transfers"}
	for _, table := range tables {
		var exists bool
		err := sqlDB.QueryRow(`
			SELECT EXISTS (
				SELECT 1 FROM information_schema.tables
				WHERE table_schema = 'public' AND table_name = $1
			)
		`, table).Scan(&exists)
		if err != nil {
			log.Fatalf("Failed to check table %s: %v", table, err)
		}

		if exists {
			var count int64
			if err := sqlDB.QueryRow(fmt.Sprintf("SELECT count(*) FROM %s", table)).Scan(&count); err != nil {
				log.Fatalf("Failed to count rows in %s: %v", table, err)
			}
			fmt.Printf("✅ Table %s exists (%d rows)\n", table, count)
		} else {
			fmt.Printf("⚠️ Table %s does not exist yet (created on first relayer start)\n", table)
		}
	}

	fmt.Println("✅ Database verification complete")
}
