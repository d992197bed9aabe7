package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"quizbowl-practice/internal/domain"
)

// SetStore reads and writes question sets stored as JSONB in question_sets.
type SetStore struct {
	pool *pgxpool.Pool
}

func NewSetStore(pool *pgxpool.Pool) *SetStore {
	return &SetStore{pool: pool}
}

func (s *SetStore) LoadSet(ctx context.Context, setID string) (domain.QuestionSet, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM question_sets WHERE id=$1`, setID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuestionSet{}, domain.ErrSetNotFound
	}
	if err != nil {
		return domain.QuestionSet{}, fmt.Errorf("load set: %w", err)
	}
	var set domain.QuestionSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return domain.QuestionSet{}, fmt.Errorf("unmarshal set: %w", err)
	}
	set.ID = setID
	return set, nil
}

// SaveSets upserts sets in one transaction.
func (s *SetStore) SaveSets(ctx context.Context, sets []domain.QuestionSet) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, set := range sets {
		data, err := json.Marshal(set)
		if err != nil {
			return fmt.Errorf("marshal set %s: %w", set.ID, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO question_sets (id, title, data, updated_at) VALUES ($1, $2, $3::jsonb, now())
ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, data=EXCLUDED.data, updated_at=now()`, set.ID, set.Title, string(data)); err != nil {
			return fmt.Errorf("upsert set %s: %w", set.ID, err)
		}
	}
	return tx.Commit(ctx)
}
