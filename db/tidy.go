package db

import (
	"context"
	"fmt"
	"time"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"
)

// Tidy removes posts older than the retention window to keep the database
// size down and the feed fresh. Returns the ids of the removed posts so
// callers can retract them from the tag index.
func (db *DB) Tidy(ctx context.Context, retention time.Duration) ([]int64, error) {
	cutoff := time.Now().Add(-retention).Unix()

	sb := sqlbuilder.SQLite.NewSelectBuilder()
	query, args := sb.Select("id").From("posts").Where(sb.LessThan("created_at", cutoff)).Build()

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	var evicted []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		evicted = append(evicted, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(evicted) == 0 {
		return nil, nil
	}

	del := sqlbuilder.SQLite.NewDeleteBuilder()
	query, args = del.DeleteFrom("posts").Where(del.LessThan("created_at", cutoff)).Build()
	if _, err := db.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("delete error: %w", err)
	}

	log.WithFields(log.Fields{
		"removed": len(evicted),
		"cutoff":  time.Unix(cutoff, 0).Format(time.RFC3339),
	}).Info("Tidied old posts")

	return evicted, nil
}
