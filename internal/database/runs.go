package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// InsertSearchRun records a completed search. Returns the new row ID.
func (db *DB) InsertSearchRun(run SearchRun) (int64, error) {
	counts, err := json.Marshal(run.SourceCounts)
	if err != nil {
		return 0, fmt.Errorf("encoding source counts: %w", err)
	}
	result, err := db.conn.Exec(
		`INSERT INTO search_runs (region, keywords, result_count, rejected_count, fallback, source_counts, duration_ms, ran_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Region, run.Keywords, run.ResultCount, run.RejectedCount, run.Fallback,
		string(counts), run.DurationMS, db.stamp(0),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetRecentSearchRuns returns up to limit runs, newest first.
func (db *DB) GetRecentSearchRuns(limit int) ([]SearchRun, error) {
	rows, err := db.conn.Query(
		`SELECT id, region, keywords, result_count, rejected_count, fallback, source_counts, duration_ms, ran_at
		FROM search_runs ORDER BY ran_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []SearchRun
	for rows.Next() {
		var r SearchRun
		var counts sql.NullString
		if err := rows.Scan(&r.ID, &r.Region, &r.Keywords, &r.ResultCount, &r.RejectedCount,
			&r.Fallback, &counts, &r.DurationMS, &r.RanAt); err != nil {
			return nil, err
		}
		if counts.Valid && counts.String != "" {
			if err := json.Unmarshal([]byte(counts.String), &r.SourceCounts); err != nil {
				return nil, fmt.Errorf("decoding source counts for run %d: %w", r.ID, err)
			}
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// CountSearchRuns returns the total number of recorded searches.
func (db *DB) CountSearchRuns() (int, error) {
	var n int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM search_runs").Scan(&n)
	return n, err
}
