package mux

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/satops/blindscan/internal/candidate"
)

func polFromString(s string) candidate.Polarisation { return candidate.Polarisation(s) }

func deliveryFromString(s string) candidate.DeliverySystem { return candidate.DeliverySystem(s) }

func plsModeFromInt(v int) candidate.PLSMode { return candidate.PLSMode(v) }

const schemaSQL = `
CREATE TABLE IF NOT EXISTS muxes (
	ref TEXT PRIMARY KEY,
	network_uuid TEXT NOT NULL,
	frequency_khz INTEGER NOT NULL,
	polarisation TEXT NOT NULL,
	symbol_rate INTEGER NOT NULL,
	delivery TEXT NOT NULL,
	modulation TEXT NOT NULL,
	fec TEXT NOT NULL,
	rolloff TEXT NOT NULL,
	pilot INTEGER NOT NULL,
	stream_id INTEGER NOT NULL,
	pls_mode INTEGER NOT NULL,
	pls_code INTEGER NOT NULL,
	is_gse INTEGER NOT NULL,
	scan_result TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_muxes_network ON muxes(network_uuid);
`

const insertMuxSQL = `
INSERT INTO muxes (
	ref, network_uuid, frequency_khz, polarisation, symbol_rate,
	delivery, modulation, fec, rolloff, pilot, stream_id, pls_mode,
	pls_code, is_gse, scan_result
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectByNetworkSQL = `
SELECT ref, network_uuid, frequency_khz, polarisation, symbol_rate,
	delivery, modulation, fec, rolloff, pilot, stream_id, pls_mode,
	pls_code, is_gse, scan_result
FROM muxes WHERE network_uuid = ?`

// SQLiteRegistry is a reference persistent Network implementation,
// grounded on roman-kulish-drone-surveillance's SqliteStore: lazy
// connection via sync.Once, WAL journal mode, prepared statements.
type SQLiteRegistry struct {
	dbPath string

	dbOnce sync.Once
	db     *sql.DB
	dbErr  error

	mu     sync.Mutex
	nextID int
}

// NewSQLiteRegistry returns a registry backed by the SQLite file at
// dbPath. The schema is created lazily on first use.
func NewSQLiteRegistry(dbPath string) *SQLiteRegistry {
	return &SQLiteRegistry{dbPath: dbPath}
}

func (s *SQLiteRegistry) conn() (*sql.DB, error) {
	s.dbOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL", s.dbPath))
		if err != nil {
			s.dbErr = fmt.Errorf("opening sqlite registry: %w", err)
			return
		}
		if _, err := db.Exec(schemaSQL); err != nil {
			_ = db.Close()
			s.dbErr = fmt.Errorf("initializing schema: %w", err)
			return
		}
		s.db = db
	})
	return s.db, s.dbErr
}

func (s *SQLiteRegistry) Lookup(ctx context.Context, networkUUID string, key Record) (*Record, bool, error) {
	all, err := s.AllForNetwork(ctx, networkUUID)
	if err != nil {
		return nil, false, err
	}
	tolerance := FrequencyTolerance(key.SymbolRateSymPerS)
	for _, rec := range all {
		if rec.Polarisation != key.Polarisation || rec.StreamID != key.StreamID {
			continue
		}
		delta := rec.FrequencyKHz - key.FrequencyKHz
		if delta < 0 {
			delta = -delta
		}
		if delta <= tolerance {
			out := rec
			return &out, true, nil
		}
	}
	return nil, false, nil
}

func (s *SQLiteRegistry) Create(ctx context.Context, rec Record) (rec2 Record, err error) {
	db, err := s.conn()
	if err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	s.nextID++
	rec.Ref = fmt.Sprintf("mux-%d", s.nextID)
	s.mu.Unlock()
	rec.ScanResult = ScanUnknown

	stmt, err := db.PrepareContext(ctx, insertMuxSQL)
	if err != nil {
		return Record{}, fmt.Errorf("preparing insert: %w", err)
	}
	defer closeWithError(stmt, &err)

	pilot := 0
	if rec.Pilot {
		pilot = 1
	}
	gse := 0
	if rec.IsGSE {
		gse = 1
	}
	_, err = stmt.ExecContext(ctx, rec.Ref, rec.NetworkUUID, rec.FrequencyKHz, string(rec.Polarisation),
		rec.SymbolRateSymPerS, string(rec.Delivery), rec.Modulation, rec.FEC, rec.Rolloff, pilot,
		rec.StreamID, int(rec.PLSMode), rec.PLSCode, gse, string(rec.ScanResult))
	if err != nil {
		return Record{}, fmt.Errorf("inserting mux: %w", err)
	}
	return rec, nil
}

func (s *SQLiteRegistry) Enqueue(_ context.Context, ref string, _ string) error {
	// Enqueueing with the upstream scanner is an external integration;
	// the reference registry only persists the record itself.
	if ref == "" {
		return fmt.Errorf("enqueue: empty ref")
	}
	return nil
}

func (s *SQLiteRegistry) AllForNetwork(ctx context.Context, networkUUID string) (out []Record, err error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, selectByNetworkSQL, networkUUID)
	if err != nil {
		return nil, fmt.Errorf("querying muxes: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var rec Record
		var pol, delivery, scanResult string
		var pilot, gse, plsMode int
		if err := rows.Scan(&rec.Ref, &rec.NetworkUUID, &rec.FrequencyKHz, &pol, &rec.SymbolRateSymPerS,
			&delivery, &rec.Modulation, &rec.FEC, &rec.Rolloff, &pilot, &rec.StreamID, &plsMode,
			&rec.PLSCode, &gse, &scanResult); err != nil {
			return nil, fmt.Errorf("scanning mux row: %w", err)
		}
		rec.Polarisation = polFromString(pol)
		rec.Delivery = deliveryFromString(delivery)
		rec.Pilot = pilot != 0
		rec.IsGSE = gse != 0
		rec.PLSMode = plsModeFromInt(plsMode)
		rec.ScanResult = ScanResult(scanResult)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close releases the underlying database connection.
func (s *SQLiteRegistry) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}
