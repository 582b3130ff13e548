package sqlite

import (
	"strings"

	"signal-botv1/internal/model"
)

// Watchlist returns all watched tickers ordered by symbol.
func (s *Store) Watchlist() ([]model.WatchItem, error) {
	rows, err := s.db.Query(`SELECT ticker, COALESCE(name, '') FROM watchlist ORDER BY ticker`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.WatchItem
	for rows.Next() {
		var it model.WatchItem
		if err := rows.Scan(&it.Ticker, &it.Name); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// AddTicker adds a ticker to the watchlist. Returns false if it was already
// present. The symbol is uppercased before storing.
func (s *Store) AddTicker(ticker, name string) (bool, error) {
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO watchlist (ticker, name) VALUES (?, ?)`,
		strings.ToUpper(ticker), name,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// RemoveTicker removes a ticker from the watchlist. Returns false if it was
// not present.
func (s *Store) RemoveTicker(ticker string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM watchlist WHERE ticker = ?`, strings.ToUpper(ticker))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
