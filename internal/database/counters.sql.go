package database

import (
	"context"
)

const nextCounterValue = `-- name: NextCounterValue :one
INSERT INTO counters (name, value)
VALUES ($1, 1)
ON CONFLICT (name) DO UPDATE SET value = counters.value + 1
RETURNING value
`

// NextCounterValue increments the named counter, creating it at 1 on first
// use, and returns the post-increment value. The upsert takes a row lock,
// so concurrent callers always observe distinct values.
func (q *Queries) NextCounterValue(ctx context.Context, name string) (int64, error) {
	row := q.db.QueryRow(ctx, nextCounterValue, name)
	var value int64
	err := row.Scan(&value)
	return value, err
}

const getCounterValue = `-- name: GetCounterValue :one
SELECT value FROM counters WHERE name = $1
`

func (q *Queries) GetCounterValue(ctx context.Context, name string) (int64, error) {
	row := q.db.QueryRow(ctx, getCounterValue, name)
	var value int64
	err := row.Scan(&value)
	return value, err
}
