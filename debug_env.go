package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	// Load .env
	err := godotenv.Load()
	if err != nil {
		log.Fatal("Error loading .env file:", err)
	}

	fmt.Println("✅ .env loaded successfully!")

	backend := os.Getenv("STORE_BACKEND")
	fmt.Printf("✅ STORE_BACKEND = %q\n", backend)

	if backend != "postgres" {
		fmt.Println("Nothing else to probe for this backend")
		return
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL not found")
	}

	fmt.Println("✅ DATABASE_URL found!")
	fmt.Println("Connecting to database...")

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatal("Failed to connect:", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal("Can't reach database:", err)
	}

	fmt.Println("✅ Connected to database via .env!")

	// Count persisted state blobs
	var count int
	db.QueryRow("SELECT COUNT(*) FROM engine_state").Scan(&count)
	fmt.Printf("✅ Found %d state blobs\n", count)
}
