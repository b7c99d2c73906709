package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"aplose/internal/metrics"
)

// EnsureDetector returns the detector named name, creating it if needed.
func (s *Store) EnsureDetector(ctx context.Context, name string) (*Detector, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("detector name is required")
	}
	if _, err := s.execWithRetry(ctx, `INSERT INTO detectors (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name); err != nil {
		return nil, fmt.Errorf("ensure detector: %w", err)
	}
	var detector Detector
	if err := s.db.QueryRowContext(ensureContext(ctx), `SELECT id, name FROM detectors WHERE name = ?`, name).
		Scan(&detector.ID, &detector.Name); err != nil {
		return nil, fmt.Errorf("load detector: %w", err)
	}
	return &detector, nil
}

// ListDetectors returns detectors ordered by name.
func (s *Store) ListDetectors(ctx context.Context) ([]Detector, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT id, name FROM detectors ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list detectors: %w", err)
	}
	defer rows.Close()

	var detectors []Detector
	for rows.Next() {
		var detector Detector
		if err := rows.Scan(&detector.ID, &detector.Name); err != nil {
			return nil, err
		}
		detectors = append(detectors, detector)
	}
	return detectors, rows.Err()
}

// CreateDetectorConfiguration stores one run configuration of a detector.
// The configuration text is free form and may be empty.
func (s *Store) CreateDetectorConfiguration(ctx context.Context, detectorID int64, configuration string) (*DetectorConfiguration, error) {
	id, err := s.insertWithRetry(ctx,
		`INSERT INTO detector_configurations (configuration, detector_id) VALUES (?, ?)`,
		nullableString(configuration), detectorID)
	if err != nil {
		return nil, fmt.Errorf("insert detector configuration: %w", err)
	}
	return &DetectorConfiguration{ID: id, DetectorID: detectorID, Configuration: configuration}, nil
}

// DetectorConfigurations lists configurations of a detector by id.
func (s *Store) DetectorConfigurations(ctx context.Context, detectorID int64) ([]DetectorConfiguration, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT id, detector_id, configuration FROM detector_configurations WHERE detector_id = ? ORDER BY id`, detectorID)
	if err != nil {
		return nil, fmt.Errorf("detector configurations: %w", err)
	}
	defer rows.Close()

	var configs []DetectorConfiguration
	for rows.Next() {
		var (
			cfg  DetectorConfiguration
			text sql.NullString
		)
		if err := rows.Scan(&cfg.ID, &cfg.DetectorID, &text); err != nil {
			return nil, err
		}
		cfg.Configuration = text.String
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

// InsertDetectorResults writes detector-authored results for a campaign in
// one transaction.
func (s *Store) InsertDetectorResults(ctx context.Context, campaignID, configurationID int64, results []DetectorResultInput) (int, error) {
	ctx = ensureContext(ctx)
	defer metrics.ObserveDBQuery("insert_detector_results", time.Now())

	var inserted int
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		inserted, err = insertDetectorResults(ctx, tx, campaignID, configurationID, results)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("insert detector results: %w", err)
	}
	return inserted, nil
}

// DetectorImport identifies the rows written by ImportDetectorResults.
type DetectorImport struct {
	DetectorID      int64
	ConfigurationID int64
	Inserted        int
}

// ImportDetectorResults records a detector run: the detector (reused by
// name), a new configuration row and its results, all or nothing.
func (s *Store) ImportDetectorResults(ctx context.Context, campaignID int64, detectorName, configuration string, results []DetectorResultInput) (*DetectorImport, error) {
	detectorName = strings.TrimSpace(detectorName)
	if detectorName == "" {
		return nil, errors.New("detector name is required")
	}
	ctx = ensureContext(ctx)
	defer metrics.ObserveDBQuery("import_detector_results", time.Now())

	var out DetectorImport
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		out = DetectorImport{}
		if _, err := tx.ExecContext(ctx, `INSERT INTO detectors (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, detectorName); err != nil {
			return err
		}
		if err := tx.QueryRowContext(ctx, `SELECT id FROM detectors WHERE name = ?`, detectorName).Scan(&out.DetectorID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO detector_configurations (configuration, detector_id) VALUES (?, ?)`,
			nullableString(configuration), out.DetectorID)
		if err != nil {
			return err
		}
		if out.ConfigurationID, err = res.LastInsertId(); err != nil {
			return err
		}
		out.Inserted, err = insertDetectorResults(ctx, tx, campaignID, out.ConfigurationID, results)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("import detector results: %w", err)
	}
	return &out, nil
}

func insertDetectorResults(ctx context.Context, tx *sql.Tx, campaignID, configurationID int64, results []DetectorResultInput) (int, error) {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO annotation_results (
			annotation_campaign_id, annotator_id, dataset_file_id, detector_configuration_id,
			annotation_tag_id, start_time, end_time, start_frequency, end_frequency
		) VALUES (?, NULL, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, result := range results {
		if _, err := stmt.ExecContext(ctx,
			campaignID, result.DatasetFileID, configurationID, result.TagID,
			nullableFloat(result.StartTime), nullableFloat(result.EndTime),
			nullableFloat(result.StartFrequency), nullableFloat(result.EndFrequency),
		); err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}
