package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// ErrNoFacts is returned by RandomFact when the fact table is empty.
var ErrNoFacts = errors.New("no cat facts stored")

const (
	selectRandomFact = `SELECT id, fact, created_at FROM catfacts ORDER BY random() LIMIT 1`
	selectFactByID   = `SELECT id, fact, created_at FROM catfacts WHERE id = ?`
	insertFact       = `INSERT INTO catfacts (fact) VALUES (?)`
	countFacts       = `SELECT COUNT(*) FROM catfacts`
)

// RandomFact selects one fact at random.
func (s *Store) RandomFact(ctx context.Context) (Fact, error) {
	return Do(ctx, s, func(ctx context.Context, q Querier) (Fact, error) {
		var f Fact
		err := q.QueryRowContext(ctx, selectRandomFact).Scan(&f.ID, &f.Text, &f.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return Fact{}, ErrNoFacts
		}
		if err != nil {
			return Fact{}, errors.Wrap(err, "failed to select random cat fact")
		}
		return f, nil
	})
}

// CreateFact inserts a fact and returns the stored row.
func (s *Store) CreateFact(ctx context.Context, text string) (Fact, error) {
	return Do(ctx, s, func(ctx context.Context, q Querier) (Fact, error) {
		res, err := q.ExecContext(ctx, insertFact, text)
		if err != nil {
			return Fact{}, errors.Wrap(err, "failed to insert cat fact")
		}
		id, err := res.LastInsertId()
		if err != nil {
			return Fact{}, errors.Wrap(err, "failed to read inserted cat fact id")
		}
		var f Fact
		if err := q.QueryRowContext(ctx, selectFactByID, id).Scan(&f.ID, &f.Text, &f.CreatedAt); err != nil {
			return Fact{}, errors.Wrap(err, "failed to select inserted cat fact")
		}
		return f, nil
	})
}

// CountFacts returns the number of stored facts.
func (s *Store) CountFacts(ctx context.Context) (int64, error) {
	return Do(ctx, s, func(ctx context.Context, q Querier) (int64, error) {
		var n int64
		if err := q.QueryRowContext(ctx, countFacts).Scan(&n); err != nil {
			return 0, errors.Wrap(err, "failed to count cat facts")
		}
		return n, nil
	})
}
