package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var currencies = []string{"USD", "EUR", "GBP"}
var statuses = []string{"COMPLETED", "PENDING", "FAILED"}

func main() {
	path := flag.String("db", "sample.db", "SQLite file to create or extend")
	users := flag.Int("users", 100000, "Number of users")
	txs := flag.Int("transactions", 500000, "Number of transactions")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := sql.Open("sqlite3", *path+"?_journal_mode=WAL&_synchronous=OFF")
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	slog.Info("Creating tables...", "db", *path)

	// 1. Create Users Table
	mustExec(db, `
		CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT,
			email TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			score REAL
		)
	`)

	// 2. Create Transactions Table
	mustExec(db, `
		CREATE TABLE IF NOT EXISTS transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER REFERENCES users(id),
			amount NUMERIC,
			currency TEXT,
			status TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	mustExec(db, `CREATE INDEX IF NOT EXISTS idx_transactions_user_id ON transactions(user_id)`)
	mustExec(db, `CREATE VIEW IF NOT EXISTS user_totals AS
		SELECT u.id, u.name, SUM(t.amount) AS total
		FROM users u JOIN transactions t ON t.user_id = u.id
		GROUP BY u.id`)

	// 3. Seed Users
	userCount := count(db, "users")
	if userCount < *users {
		slog.Info("Seeding users...", "from", userCount, "to", *users)
		start := time.Now()
		seed(db, "INSERT INTO users (name, email, created_at, score) VALUES (?, ?, ?, ?)", userCount, *users,
			func(idx int) []any {
				return []any{
					fmt.Sprintf("User%d", idx),
					fmt.Sprintf("user%d@example.com", idx),
					time.Now().Add(-time.Duration(idx) * time.Minute),
					float64(idx) * 0.1,
				}
			})
		slog.Info("User seeding complete", "duration", time.Since(start))
	} else {
		slog.Info("Users already seeded", "count", userCount)
	}

	// 4. Seed Transactions
	txCount := count(db, "transactions")
	if txCount < *txs {
		slog.Info("Seeding transactions...", "from", txCount, "to", *txs)
		start := time.Now()
		seed(db, "INSERT INTO transactions (user_id, amount, currency, status, created_at) VALUES (?, ?, ?, ?, ?)", txCount, *txs,
			func(idx int) []any {
				uid := idx%*users + 1
				return []any{
					uid,
					float64(uid) * 0.25,
					currencies[idx%len(currencies)],
					statuses[idx%len(statuses)],
					time.Now(),
				}
			})
		slog.Info("Transaction seeding complete", "duration", time.Since(start))
	} else {
		slog.Info("Transactions already seeded", "count", txCount)
	}

	slog.Info("Sample database ready", "db", *path)
}

// seed inserts rows from+1..to in transactions of 10,000 rows.
func seed(db *sql.DB, stmt string, from, to int, values func(idx int) []any) {
	const batchSize = 10000
	for i := from; i < to; i += batchSize {
		tx, err := db.Begin()
		if err != nil {
			fatal(err)
		}
		ps, err := tx.Prepare(stmt)
		if err != nil {
			fatal(err)
		}
		for j := i; j < min(i+batchSize, to); j++ {
			if _, err := ps.Exec(values(j + 1)...); err != nil {
				fatal(err)
			}
		}
		ps.Close()
		if err := tx.Commit(); err != nil {
			fatal(err)
		}
		fmt.Printf("\rSeeding: %d/%d", min(i+batchSize, to), to)
	}
	fmt.Println()
}

func count(db *sql.DB, table string) int {
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		fatal(err)
	}
	return n
}

func mustExec(db *sql.DB, stmt string) {
	if _, err := db.Exec(stmt); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	slog.Error("Seeding failed", "error", err)
	os.Exit(1)
}
