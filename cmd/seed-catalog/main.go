package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/talentshire/assessment-core/internal/config"
	"github.com/talentshire/assessment-core/internal/database"
	"github.com/talentshire/assessment-core/internal/logger"
	"github.com/talentshire/assessment-core/internal/repository"
	"github.com/talentshire/assessment-core/internal/service"
)

type seedMCQ struct {
	title   string
	options []string
	correct string
	marks   float64
}

var mcqSeeds = []seedMCQ{
	{"Which keyword starts a goroutine?", []string{"A) go", "B) async", "C) spawn", "D) thread"}, "A", 2},
	{"What does a nil map read return?", []string{"A) panic", "B) zero value", "C) error", "D) nil pointer"}, "B", 2},
	{"Which package provides a mutex?", []string{"A) os", "B) context", "C) sync", "D) runtime"}, "C", 2},
}

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	fmt.Println("=== Seeding sample catalog ===")

	var (
		testID       uuid.UUID
		candidateIDs []uuid.UUID
	)

	err = database.NewTxManager(pool).WithTx(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx,
			`INSERT INTO tests (name, duration_minutes) VALUES ($1, $2) RETURNING id`,
			"Go Fundamentals", 45,
		).Scan(&testID); err != nil {
			return fmt.Errorf("insert test: %w", err)
		}

		order := 0
		for _, m := range mcqSeeds {
			var qid uuid.UUID
			if err := tx.QueryRow(ctx,
				`INSERT INTO mcq_questions (title, options, correct_option, marks) VALUES ($1, $2, $3, $4) RETURNING id`,
				m.title, m.options, m.correct, m.marks,
			).Scan(&qid); err != nil {
				return fmt.Errorf("insert mcq question: %w", err)
			}
			if err := attach(ctx, tx, testID, qid, "MCQ", order); err != nil {
				return err
			}
			order++
		}

		var codingID uuid.UUID
		if err := tx.QueryRow(ctx,
			`INSERT INTO coding_questions (title, description, marks) VALUES ($1, $2, $3) RETURNING id`,
			"Reverse a string", "Write a function that reverses a UTF-8 string.", 10.0,
		).Scan(&codingID); err != nil {
			return fmt.Errorf("insert coding question: %w", err)
		}
		if err := attach(ctx, tx, testID, codingID, "CODING", order); err != nil {
			return err
		}

		for i := 1; i <= 5; i++ {
			var cid uuid.UUID
			if err := tx.QueryRow(ctx,
				`INSERT INTO candidates (email, full_name) VALUES ($1, $2)
				 ON CONFLICT (email) DO UPDATE SET full_name = EXCLUDED.full_name
				 RETURNING id`,
				fmt.Sprintf("candidate%d@example.com", i), fmt.Sprintf("Candidate %d", i),
			).Scan(&cid); err != nil {
				return fmt.Errorf("insert candidate: %w", err)
			}
			candidateIDs = append(candidateIDs, cid)
		}
		return nil
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Seed failed")
	}

	// Drop any stale cached question set for the test.
	if rdb, err := database.NewRedisClient(ctx, cfg, log); err == nil {
		catalog := service.NewCatalogService(repository.NewCatalogRepository(pool), rdb, cfg.CatalogCacheTTL, log)
		if err := catalog.InvalidateTest(ctx, testID); err != nil {
			log.Warn().Err(err).Msg("Failed to invalidate catalog cache")
		}
		rdb.Close()
	}

	fmt.Printf("Test: %s\n", testID)
	for _, id := range candidateIDs {
		fmt.Printf("Candidate: %s\n", id)
	}
	fmt.Println("\nSeed completed!")
}

func attach(ctx context.Context, tx pgx.Tx, testID, questionID uuid.UUID, kind string, order int) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO test_questions (test_id, question_id, question_type, order_index) VALUES ($1, $2, $3, $4)`,
		testID, questionID, kind, order,
	)
	if err != nil {
		return fmt.Errorf("attach question: %w", err)
	}
	return nil
}
