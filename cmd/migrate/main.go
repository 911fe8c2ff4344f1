package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	// Get database URL
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	// Get command
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run main.go [drop|up|seed]")
		os.Exit(1)
	}

	command := os.Args[1]

	// Connect to database
	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close(ctx)

	switch command {
	case "drop":
		if err := dropTables(ctx, conn); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		fmt.Println("✅ All tables dropped successfully")

	case "up":
		if err := createTables(ctx, conn); err != nil {
			log.Fatalf("Failed to create tables: %v", err)
		}
		fmt.Println("✅ All tables created successfully")

	case "seed":
		if err := seedData(ctx, conn); err != nil {
			log.Fatalf("Failed to seed data: %v", err)
		}
		fmt.Println("✅ Data seeded successfully")

	default:
		fmt.Printf("Unknown command: %s\n", command)
		fmt.Println("Usage: go run main.go [drop|up|seed]")
		os.Exit(1)
	}
}

func dropTables(ctx context.Context, conn *pgx.Conn) error {
	queries := []string{
		`DROP TABLE IF EXISTS chat_messages CASCADE`,
		`DROP TABLE IF EXISTS votes CASCADE`,
		`DROP TABLE IF EXISTS voters CASCADE`,
		`DROP TABLE IF EXISTS candidates CASCADE`,
		`DROP TABLE IF EXISTS election_states CASCADE`,
	}

	for _, query := range queries {
		if _, err := conn.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
		fmt.Printf("  Dropped: %s\n", query)
	}

	return nil
}

func createTables(ctx context.Context, conn *pgx.Conn) error {
	queries := []string{
		// One state row per homeroom class, created lazily with defaults
		`CREATE TABLE IF NOT EXISTS election_states (
			class_id VARCHAR(100) PRIMARY KEY,
			voting_enabled BOOLEAN NOT NULL DEFAULT false,
			results_visible BOOLEAN NOT NULL DEFAULT false,
			start_at TIMESTAMPTZ,
			end_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS candidates (
			id VARCHAR(100) PRIMARY KEY,
			class_id VARCHAR(100) NOT NULL,
			name VARCHAR(255) NOT NULL,
			bio TEXT,
			photo_url TEXT,
			votes INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS voters (
			id VARCHAR(100) NOT NULL,
			class_id VARCHAR(100) NOT NULL,
			display_name VARCHAR(255) NOT NULL,
			voted_in_class BOOLEAN NOT NULL DEFAULT false,
			voted_for VARCHAR(100),
			voted_at TIMESTAMPTZ,
			PRIMARY KEY (id, class_id)
		)`,

		// The (voter_id, class_id) unique constraint enforces one vote per
		// voter per class at the storage layer
		`CREATE TABLE IF NOT EXISTS votes (
			id UUID PRIMARY KEY,
			vote_id VARCHAR(36) UNIQUE NOT NULL,
			voter_id VARCHAR(100) NOT NULL,
			candidate_id VARCHAR(100) NOT NULL REFERENCES candidates(id) ON DELETE CASCADE,
			class_id VARCHAR(100) NOT NULL,
			cast_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE(voter_id, class_id)
		)`,

		`CREATE TABLE IF NOT EXISTS chat_messages (
			id UUID PRIMARY KEY,
			class_id VARCHAR(100) NOT NULL,
			voter_id VARCHAR(100) NOT NULL,
			kind VARCHAR(20) NOT NULL,
			body TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// Create indexes
		`CREATE INDEX IF NOT EXISTS idx_candidates_class_id ON candidates(class_id)`,
		`CREATE INDEX IF NOT EXISTS idx_votes_class_id ON votes(class_id)`,
		`CREATE INDEX IF NOT EXISTS idx_voters_class_id ON voters(class_id)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_class_created ON chat_messages(class_id, created_at DESC)`,
	}

	for _, query := range queries {
		if _, err := conn.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w\nQuery: %s", err, query)
		}
		fmt.Printf("  Created: %s\n", getTableName(query))
	}

	return nil
}

func seedData(ctx context.Context, conn *pgx.Conn) error {
	candidates := `
		INSERT INTO candidates (id, class_id, name, bio, photo_url) VALUES
		('cand-somchai', 'class-3a', 'Somchai P.', 'Football captain, wants longer lunch breaks', ''),
		('cand-nichada', 'class-3a', 'Nichada K.', 'Debate club, promises a class library corner', ''),
		('cand-arthit', 'class-3a', 'Arthit W.', 'Science olympiad, wants a recycling drive', ''),
		('cand-malee', 'class-3b', 'Malee S.', 'Art club president, wants a mural wall', ''),
		('cand-krit', 'class-3b', 'Krit T.', 'Chess club, promises weekly game afternoons', '')
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			bio = EXCLUDED.bio,
			photo_url = EXCLUDED.photo_url,
			updated_at = NOW()
	`

	if _, err := conn.Exec(ctx, candidates); err != nil {
		return fmt.Errorf("failed to seed candidates: %w", err)
	}

	fmt.Println("  Seeded 5 candidates")

	voters := `
		INSERT INTO voters (id, class_id, display_name) VALUES
		('voter-001', 'class-3a', 'Ploy'),
		('voter-002', 'class-3a', 'Beam'),
		('voter-003', 'class-3a', 'Fern'),
		('voter-004', 'class-3b', 'Mek'),
		('voter-005', 'class-3b', 'Nan')
		ON CONFLICT (id, class_id) DO UPDATE SET
			display_name = EXCLUDED.display_name
	`

	if _, err := conn.Exec(ctx, voters); err != nil {
		return fmt.Errorf("failed to seed voters: %w", err)
	}

	fmt.Println("  Seeded 5 voters")

	return nil
}

func getTableName(query string) string {
	if len(query) > 50 {
		return query[:50] + "..."
	}
	return query
}
