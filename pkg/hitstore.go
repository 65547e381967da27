package builder

import (
	"database/sql"
	"io"

	_ "modernc.org/sqlite"
)

// HitStore reads the time-sorted hit stream from a sqlite file produced by
// the upstream sorter.
type HitStore struct {
	db   *sql.DB
	rows *sql.Rows
}

func OpenHitStore(filename string) (*HitStore, error) {
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, &ErrOpenStore{Filename: filename, Err: err}
	}
	rows, err := db.Query(`
		SELECT kind, module, asic, channel, code, amplitude, time
		FROM hits ORDER BY time, rowid`)
	if err != nil {
		db.Close()
		return nil, &ErrOpenStore{Filename: filename, Err: err}
	}
	return &HitStore{db: db, rows: rows}, nil
}

func (s *HitStore) Next() (Hit, error) {
	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			return Hit{}, err
		}
		return Hit{}, io.EOF
	}
	var kind, module, asic, channel, code, amplitude int
	var t int64
	err := s.rows.Scan(&kind, &module, &asic, &channel, &code, &amplitude, &t)
	if err != nil {
		return Hit{}, err
	}
	return Hit{
		Kind:      DataKind(kind),
		Module:    uint8(module),
		Asic:      uint8(asic),
		Channel:   uint8(channel),
		Code:      InfoCode(code),
		Amplitude: uint16(amplitude),
		Time:      t,
	}, nil
}

func (s *HitStore) Count() (int64, error) {
	var n int64
	err := s.db.QueryRow("SELECT COUNT(*) FROM hits").Scan(&n)
	return n, err
}

func (s *HitStore) Close() error {
	if err := s.rows.Close(); err != nil {
		s.db.Close()
		return err
	}
	return s.db.Close()
}
