package store

import (
	"context"

	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// ErrDuplicateSubscriber is returned when the email is already subscribed.
var ErrDuplicateSubscriber = errors.New("email is already subscribed")

const (
	selectSubscribers    = `SELECT id, email, created_at FROM subscribers ORDER BY id`
	selectSubscriberByID = `SELECT id, email, created_at FROM subscribers WHERE id = ?`
	insertSubscriber     = `INSERT INTO subscribers (email) VALUES (?)`
	countSubscribers     = `SELECT COUNT(*) FROM subscribers`
)

// ListSubscribers returns all subscribers in registration order.
func (s *Store) ListSubscribers(ctx context.Context) ([]Subscriber, error) {
	return Do(ctx, s, func(ctx context.Context, q Querier) ([]Subscriber, error) {
		rows, err := q.QueryContext(ctx, selectSubscribers)
		if err != nil {
			return nil, errors.Wrap(err, "failed to select subscribers")
		}
		defer func() { _ = rows.Close() }()

		subs := []Subscriber{}
		for rows.Next() {
			var sub Subscriber
			if err := rows.Scan(&sub.ID, &sub.Email, &sub.CreatedAt); err != nil {
				return nil, errors.Wrap(err, "failed to scan subscriber")
			}
			subs = append(subs, sub)
		}
		if err := rows.Err(); err != nil {
			return nil, errors.Wrap(err, "failed to iterate subscribers")
		}
		return subs, nil
	})
}

// CreateSubscriber registers an email address.
func (s *Store) CreateSubscriber(ctx context.Context, email string) (Subscriber, error) {
	return Do(ctx, s, func(ctx context.Context, q Querier) (Subscriber, error) {
		res, err := q.ExecContext(ctx, insertSubscriber, email)
		if err != nil {
			if isUniqueViolation(err) {
				return Subscriber{}, ErrDuplicateSubscriber
			}
			return Subscriber{}, errors.Wrap(err, "failed to insert subscriber")
		}
		id, err := res.LastInsertId()
		if err != nil {
			return Subscriber{}, errors.Wrap(err, "failed to read inserted subscriber id")
		}
		var sub Subscriber
		if err := q.QueryRowContext(ctx, selectSubscriberByID, id).Scan(&sub.ID, &sub.Email, &sub.CreatedAt); err != nil {
			return Subscriber{}, errors.Wrap(err, "failed to select inserted subscriber")
		}
		return sub, nil
	})
}

// CountSubscribers returns the number of registered subscribers.
func (s *Store) CountSubscribers(ctx context.Context) (int64, error) {
	return Do(ctx, s, func(ctx context.Context, q Querier) (int64, error) {
		var n int64
		if err := q.QueryRowContext(ctx, countSubscribers).Scan(&n); err != nil {
			return 0, errors.Wrap(err, "failed to count subscribers")
		}
		return n, nil
	})
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
