package service

import (
	"cmp"
	"context"
	"encoding/json"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/talentshire/assessment-core/internal/config"
	"github.com/talentshire/assessment-core/internal/model"
)

// CatalogSource is the authoritative catalog store.
type CatalogSource interface {
	GetTest(ctx context.Context, id uuid.UUID) (*model.Test, error)
	CandidateExists(ctx context.Context, id uuid.UUID) (bool, error)
	ListTestQuestions(ctx context.Context, testID uuid.UUID) ([]model.Question, error)
}

// CatalogService resolves catalog lookups, caching each test's question set in
// a Redis hash. A nil Redis client disables the cache.
type CatalogService struct {
	source CatalogSource
	rdb    *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(source CatalogSource, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *CatalogService {
	return &CatalogService{
		source: source,
		rdb:    rdb,
		ttl:    ttl,
		log:    log.With().Str("component", "catalog_service").Logger(),
	}
}

// GetTest retrieves test metadata.
func (s *CatalogService) GetTest(ctx context.Context, testID uuid.UUID) (*model.Test, error) {
	t, err := s.source.GetTest(ctx, testID)
	if err != nil {
		return nil, storeErr("GetTest", "test", err)
	}
	return t, nil
}

// CandidateExists reports whether the candidate is known.
func (s *CatalogService) CandidateExists(ctx context.Context, candidateID uuid.UUID) (bool, error) {
	ok, err := s.source.CandidateExists(ctx, candidateID)
	if err != nil {
		return false, storeErr("CandidateExists", "candidate", err)
	}
	return ok, nil
}

// ResolveQuestion returns the question if it belongs to the test and has the
// requested kind. Anything else is NotFound.
func (s *CatalogService) ResolveQuestion(ctx context.Context, testID uuid.UUID, ref model.QuestionRef) (*model.Question, error) {
	questions, err := s.Questions(ctx, testID)
	if err != nil {
		return nil, err
	}
	for i := range questions {
		q := questions[i]
		if q.Ref.ID == ref.ID {
			if q.Ref.Kind != ref.Kind {
				return nil, notFound("ResolveQuestion", "%s question %s not in test %s", ref.Kind, ref.ID, testID)
			}
			return &q, nil
		}
	}
	return nil, notFound("ResolveQuestion", "%s question %s not in test %s", ref.Kind, ref.ID, testID)
}

// CountQuestions counts the test's questions of one kind.
func (s *CatalogService) CountQuestions(ctx context.Context, testID uuid.UUID, kind model.QuestionKind) (int, error) {
	questions, err := s.Questions(ctx, testID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, q := range questions {
		if q.Ref.Kind == kind {
			n++
		}
	}
	return n, nil
}

// Questions returns the full question set of a test, cache first.
func (s *CatalogService) Questions(ctx context.Context, testID uuid.UUID) ([]model.Question, error) {
	if cached, ok := s.readCache(ctx, testID); ok {
		return cached, nil
	}

	questions, err := s.source.ListTestQuestions(ctx, testID)
	if err != nil {
		return nil, storeErr("Questions", "test questions", err)
	}
	s.writeCache(ctx, testID, questions)
	return questions, nil
}

// InvalidateTest drops the cached question set of a test.
func (s *CatalogService) InvalidateTest(ctx context.Context, testID uuid.UUID) error {
	if s.rdb == nil {
		return nil
	}
	return s.rdb.Del(ctx, config.CacheKey.TestQuestionsKey(testID)).Err()
}

func (s *CatalogService) readCache(ctx context.Context, testID uuid.UUID) ([]model.Question, bool) {
	if s.rdb == nil {
		return nil, false
	}

	fields, err := s.rdb.HGetAll(ctx, config.CacheKey.TestQuestionsKey(testID)).Result()
	if err != nil {
		s.log.Warn().Err(err).Str("test_id", testID.String()).Msg("Catalog cache read failed, using database")
		return nil, false
	}
	if len(fields) == 0 {
		return nil, false
	}

	questions := make([]model.Question, 0, len(fields))
	for _, raw := range fields {
		var q model.Question
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			s.log.Warn().Err(err).Str("test_id", testID.String()).Msg("Corrupt catalog cache entry, using database")
			return nil, false
		}
		questions = append(questions, q)
	}
	sortQuestions(questions)
	return questions, true
}

func (s *CatalogService) writeCache(ctx context.Context, testID uuid.UUID, questions []model.Question) {
	if s.rdb == nil || len(questions) == 0 {
		return
	}

	values := make(map[string]any, len(questions))
	for _, q := range questions {
		b, err := json.Marshal(q)
		if err != nil {
			return
		}
		values[q.Ref.ID.String()] = b
	}

	key := config.CacheKey.TestQuestionsKey(testID)
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, values)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Str("test_id", testID.String()).Msg("Catalog cache write failed")
	}
}

func sortQuestions(qs []model.Question) {
	slices.SortFunc(qs, func(a, b model.Question) int {
		if c := cmp.Compare(a.OrderIndex, b.OrderIndex); c != 0 {
			return c
		}
		return cmp.Compare(a.Ref.ID.String(), b.Ref.ID.String())
	})
}
