package repository

import (
	"strings"
	"time"
)

// onConflictUpdate builds an upsert suffix understood by both SQLite and PostgreSQL.
func onConflictUpdate(conflict []string, update ...string) string {
	sets := make([]string, len(update))
	for i, col := range update {
		sets[i] = col + " = excluded." + col
	}
	return "ON CONFLICT (" + strings.Join(conflict, ", ") + ") DO UPDATE SET " + strings.Join(sets, ", ")
}

// Timestamps are stored as unix seconds so both backends scan them the same way.
func toUnix(t time.Time) int64 {
	return t.UTC().Unix()
}

func fromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
