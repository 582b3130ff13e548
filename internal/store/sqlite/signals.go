package sqlite

import (
	"database/sql"
	"time"

	"signal-botv1/internal/model"
)

// LastSignal returns the most recent delivered signal for a ticker, or nil
// if none has ever been delivered. This is the dedup reference record: it is
// re-read before every decision so external history edits take effect
// immediately.
func (s *Store) LastSignal(ticker string) (*model.SignalRecord, error) {
	var rec model.SignalRecord
	var createdAt int64
	err := s.db.QueryRow(`
		SELECT ticker, signal_type, price, rpp_score, created_at
		FROM signal_history
		WHERE ticker = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, ticker).Scan(&rec.Ticker, &rec.Signal, &rec.Price, &rec.RPPScore, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &rec, nil
}

// AppendSignal records a delivered signal. History is append-only; rows are
// never updated or deleted.
func (s *Store) AppendSignal(rec model.SignalRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO signal_history (ticker, signal_type, price, rpp_score, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, rec.Ticker, string(rec.Signal), rec.Price, rec.RPPScore, rec.CreatedAt.Unix())
	return err
}

// RecentSignals returns delivered signals at or after since, newest first.
func (s *Store) RecentSignals(since time.Time) ([]model.SignalRecord, error) {
	rows, err := s.db.Query(`
		SELECT ticker, signal_type, price, rpp_score, created_at
		FROM signal_history
		WHERE created_at >= ?
		ORDER BY created_at DESC, id DESC
	`, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []model.SignalRecord
	for rows.Next() {
		var rec model.SignalRecord
		var createdAt int64
		if err := rows.Scan(&rec.Ticker, &rec.Signal, &rec.Price, &rec.RPPScore, &createdAt); err != nil {
			return nil, err
		}
		rec.CreatedAt = time.Unix(createdAt, 0).UTC()
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
