package storage

import (
	"database/sql"
	"time"
)

// MetricLeadsCaptured is bumped once per newly created lead.
const MetricLeadsCaptured = "leads_captured"

// IncrementDailyMetric bumps the counter for the given metric on the given
// day (UTC, YYYY-MM-DD). Callers treat failures as best-effort.
func (s *Store) IncrementDailyMetric(name string, day time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO daily_metrics (name, day, count) VALUES (?, ?, 1)
		ON CONFLICT(name, day) DO UPDATE SET count = count + 1`,
		name, day.UTC().Format("2006-01-02"),
	)
	return err
}

// GetDailyMetric returns the counter value for a metric on a day, zero when
// no row exists.
func (s *Store) GetDailyMetric(name string, day time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(
		"SELECT count FROM daily_metrics WHERE name = ? AND day = ?",
		name, day.UTC().Format("2006-01-02"),
	).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return count, err
}
