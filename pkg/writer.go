package builder

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// EventWriter persists physics events and the end-of-run summary into a
// sqlite file, one row per sub-event keyed by run id and event number.
type EventWriter struct {
	db         *sql.DB
	Filename   string
	RunID      string
	EvtCounter int64
}

var eventTables = map[string]string{
	"runs": `CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		started TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	"events": `CREATE TABLE IF NOT EXISTS events (
		run_id TEXT,
		evt_number BIGINT,
		window_start BIGINT,
		window_end BIGINT,
		hits INT,
		ebis_time BIGINT,
		t1_time BIGINT,
		PRIMARY KEY (run_id, evt_number)
	)`,
	"array_events": `CREATE TABLE IF NOT EXISTS array_events (
		run_id TEXT,
		evt_number BIGINT,
		module INT,
		row INT,
		p_strip INT,
		n_strip INT,
		p_energy DOUBLE,
		n_energy DOUBLE,
		time BIGINT,
		time_diff BIGINT,
		class TEXT
	)`,
	"arrayp_events": `CREATE TABLE IF NOT EXISTS arrayp_events (
		run_id TEXT,
		evt_number BIGINT,
		module INT,
		row INT,
		strip INT,
		energy DOUBLE,
		time BIGINT
	)`,
	"recoil_events": `CREATE TABLE IF NOT EXISTS recoil_events (
		run_id TEXT,
		evt_number BIGINT,
		sector INT,
		layer INT,
		energy DOUBLE,
		time BIGINT,
		partial INT
	)`,
	"mwpc_events": `CREATE TABLE IF NOT EXISTS mwpc_events (
		run_id TEXT,
		evt_number BIGINT,
		axis INT,
		sector INT,
		tac_diff INT,
		has_position INT,
		time BIGINT
	)`,
	"elum_events": `CREATE TABLE IF NOT EXISTS elum_events (
		run_id TEXT,
		evt_number BIGINT,
		sector INT,
		energy DOUBLE,
		time BIGINT
	)`,
	"zd_events": `CREATE TABLE IF NOT EXISTS zd_events (
		run_id TEXT,
		evt_number BIGINT,
		layer INT,
		energy DOUBLE,
		time BIGINT
	)`,
	"gamma_events": `CREATE TABLE IF NOT EXISTS gamma_events (
		run_id TEXT,
		evt_number BIGINT,
		detector INT,
		energy DOUBLE,
		segments INT,
		type TEXT,
		time BIGINT
	)`,
	"summary": `CREATE TABLE IF NOT EXISTS summary (
		run_id TEXT,
		name TEXT,
		value BIGINT
	)`,
}

func NewEventWriter(filename string) (*EventWriter, error) {
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, &ErrOpenStore{Filename: filename, Err: err}
	}
	for name, ddl := range eventTables {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, &ErrCreateTable{TableName: name, Err: err}
		}
	}

	w := &EventWriter{
		db:       db,
		Filename: filename,
		RunID:    uuid.NewString(),
	}
	if _, err := db.Exec("INSERT INTO runs (run_id) VALUES (?)", w.RunID); err != nil {
		db.Close()
		return nil, &ErrCreateTable{TableName: "runs", Err: err}
	}
	if configuration.Verbosity > 0 {
		message := fmt.Sprintf("Event store %s, run %s", filename, w.RunID)
		logInfo(message, "writer")
	}
	return w, nil
}

func (w *EventWriter) Write(evt *PhysicsEvt) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	n := w.EvtCounter
	_, err = tx.Exec(`INSERT INTO events
		(run_id, evt_number, window_start, window_end, hits, ebis_time, t1_time)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		w.RunID, n, evt.WindowStart, evt.WindowEnd, evt.Hits, evt.EbisTime, evt.T1Time)
	if err != nil {
		return err
	}

	for _, a := range evt.Array {
		_, err = tx.Exec(`INSERT INTO array_events
			(run_id, evt_number, module, row, p_strip, n_strip, p_energy, n_energy, time, time_diff, class)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			w.RunID, n, a.Module, a.Row, a.PStrip, a.NStrip, a.PEnergy, a.NEnergy, a.Time, a.TimeDiff, a.Class.String())
		if err != nil {
			return err
		}
	}
	for _, p := range evt.ArrayP {
		_, err = tx.Exec(`INSERT INTO arrayp_events
			(run_id, evt_number, module, row, strip, energy, time)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			w.RunID, n, p.Module, p.Row, p.Strip, p.Energy, p.Time)
		if err != nil {
			return err
		}
	}
	for _, r := range evt.Recoil {
		for i := range r.Layers {
			_, err = tx.Exec(`INSERT INTO recoil_events
				(run_id, evt_number, sector, layer, energy, time, partial)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				w.RunID, n, r.Sector, r.Layers[i], r.Energies[i], r.Time, boolToInt(r.Partial))
			if err != nil {
				return err
			}
		}
	}
	for _, m := range evt.Mwpc {
		_, err = tx.Exec(`INSERT INTO mwpc_events
			(run_id, evt_number, axis, sector, tac_diff, has_position, time)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			w.RunID, n, m.Axis, m.Sector, m.TacDiff, boolToInt(m.Position), m.Time)
		if err != nil {
			return err
		}
	}
	for _, e := range evt.Elum {
		_, err = tx.Exec(`INSERT INTO elum_events
			(run_id, evt_number, sector, energy, time)
			VALUES (?, ?, ?, ?, ?)`,
			w.RunID, n, e.Sector, e.Energy, e.Time)
		if err != nil {
			return err
		}
	}
	for _, z := range evt.ZeroDegree {
		for i := range z.Layers {
			_, err = tx.Exec(`INSERT INTO zd_events
				(run_id, evt_number, layer, energy, time)
				VALUES (?, ?, ?, ?, ?)`,
				w.RunID, n, z.Layers[i], z.Energies[i], z.Time)
			if err != nil {
				return err
			}
		}
	}
	for _, g := range evt.Gamma {
		gammaType := "single"
		if g.Type == GammaAddback {
			gammaType = "addback"
		}
		_, err = tx.Exec(`INSERT INTO gamma_events
			(run_id, evt_number, detector, energy, segments, type, time)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			w.RunID, n, g.Detector, g.Energy, g.Segments, gammaType, g.Time)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	w.EvtCounter++
	return nil
}

// WriteSummary persists the end-of-run counters as name/value rows.
func (w *EventWriter) WriteSummary(s *Summary) error {
	c := &s.Counters
	rows := map[string]uint64{
		"asic_hits":        c.AsicHits,
		"caen_hits":        c.CaenHits,
		"info_hits":        c.InfoHits,
		"events":           c.Events,
		"array_evts":       c.ArrayEvts,
		"arrayp_evts":      c.ArrayPEvts,
		"recoil_evts":      c.RecoilEvts,
		"mwpc_evts":        c.MwpcEvts,
		"elum_evts":        c.ElumEvts,
		"zd_evts":          c.ZeroDegreeEvts,
		"gamma_evts":       c.GammaEvts,
		"unknown_channel":  c.UnknownChannel,
		"rollbacks":        c.Rollbacks,
		"missing_cal":      c.MissingCalibration,
		"loss_of_sync":     c.LossOfSync,
		"unmatched_resume": c.UnmatchedResume,
		"unmatched_pause":  c.UnmatchedPause,
	}
	for name, value := range rows {
		if _, err := w.db.Exec("INSERT INTO summary (run_id, name, value) VALUES (?, ?, ?)",
			w.RunID, name, int64(value)); err != nil {
			return err
		}
	}
	for _, m := range s.Modules {
		name := fmt.Sprintf("dead_time_module_%d", m.Module)
		if _, err := w.db.Exec("INSERT INTO summary (run_id, name, value) VALUES (?, ?, ?)",
			w.RunID, name, m.DeadTime); err != nil {
			return err
		}
	}
	return nil
}

func (w *EventWriter) Close() error {
	if configuration.Verbosity > 0 {
		message := fmt.Sprintf("Closing event store %s after %d events", w.Filename, w.EvtCounter)
		logInfo(message, "writer")
	}
	var errs []error
	if err := w.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing event store: %w", err))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// NullSink discards events. Used for timing runs and tests.
type NullSink struct {
	Events int
}

func (s *NullSink) Write(evt *PhysicsEvt) error {
	s.Events++
	return nil
}
