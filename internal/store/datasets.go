package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"aplose/internal/spectro"
)

// CreateAudioMetadatum stores recording bounds and sample rate.
func (s *Store) CreateAudioMetadatum(ctx context.Context, meta AudioMetadatum) (*AudioMetadatum, error) {
	id, err := s.insertWithRetry(ctx,
		`INSERT INTO audio_metadata (start, "end", sample_rate_khz) VALUES (?, ?, ?)`,
		nullableTime(meta.Start), nullableTime(meta.End), nullableFloat(meta.SampleRateKHz))
	if err != nil {
		return nil, fmt.Errorf("insert audio metadatum: %w", err)
	}
	meta.ID = id
	return &meta, nil
}

func (s *Store) CreateDataset(ctx context.Context, dataset Dataset) (*Dataset, error) {
	if strings.TrimSpace(dataset.Name) == "" {
		return nil, errors.New("dataset name is required")
	}
	id, err := s.insertWithRetry(ctx,
		`INSERT INTO datasets (name, dataset_path, audio_metadatum_id) VALUES (?, ?, ?)`,
		dataset.Name, dataset.DatasetPath, nullableInt64(dataset.AudioMetadatumID))
	if err != nil {
		return nil, fmt.Errorf("insert dataset: %w", err)
	}
	dataset.ID = id
	return &dataset, nil
}

func (s *Store) CreateDatasetFile(ctx context.Context, file DatasetFile) (*DatasetFile, error) {
	if strings.TrimSpace(file.Filepath) == "" {
		return nil, errors.New("dataset file path is required")
	}
	id, err := s.insertWithRetry(ctx,
		`INSERT INTO dataset_files (dataset_id, filename, filepath, size, audio_metadatum_id) VALUES (?, ?, ?, ?, ?)`,
		file.DatasetID, file.Filename, file.Filepath, file.Size, nullableInt64(file.AudioMetadatumID))
	if err != nil {
		return nil, fmt.Errorf("insert dataset file: %w", err)
	}
	file.ID = id
	return &file, nil
}

// CreateSpectroConfig rejects zoom levels the tile layout cannot serve.
func (s *Store) CreateSpectroConfig(ctx context.Context, cfg SpectroConfig) (*SpectroConfig, error) {
	if !spectro.ValidZoomLevel(cfg.ZoomLevel) {
		return nil, fmt.Errorf("insert spectro config: zoom level %d outside 0..%d", cfg.ZoomLevel, spectro.MaxZoomLevel)
	}
	id, err := s.insertWithRetry(ctx,
		`INSERT INTO spectro_configs (name, nfft, window_size, overlap, zoom_level, description) VALUES (?, ?, ?, ?, ?, ?)`,
		cfg.Name, cfg.NFFT, cfg.WindowSize, cfg.Overlap, cfg.ZoomLevel, nullableString(cfg.Description))
	if err != nil {
		return nil, fmt.Errorf("insert spectro config: %w", err)
	}
	cfg.ID = id
	return &cfg, nil
}

// AttachDatasetSpectroConfig declares that tiles for cfgID exist for datasetID.
func (s *Store) AttachDatasetSpectroConfig(ctx context.Context, datasetID, cfgID int64) error {
	if _, err := s.execWithRetry(ctx,
		`INSERT OR IGNORE INTO dataset_spectro_configs (dataset_id, spectro_config_id) VALUES (?, ?)`,
		datasetID, cfgID); err != nil {
		return fmt.Errorf("attach dataset spectro config: %w", err)
	}
	return nil
}

// CampaignFiles returns the dataset files annotated by a campaign, grouped
// by filename. A campaign spanning several datasets may list more than one
// file under the same name.
func (s *Store) CampaignFiles(ctx context.Context, campaignID int64) (map[string][]DatasetFile, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `
		SELECT DISTINCT f.id, f.dataset_id, f.filename, f.filepath, f.size, f.audio_metadatum_id
		FROM dataset_files f
		JOIN annotation_tasks t ON t.dataset_file_id = f.id
		WHERE t.annotation_campaign_id = ?
		ORDER BY f.id`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("campaign files: %w", err)
	}
	defer rows.Close()

	files := make(map[string][]DatasetFile)
	for rows.Next() {
		var (
			file    DatasetFile
			audioID sql.NullInt64
		)
		if err := rows.Scan(&file.ID, &file.DatasetID, &file.Filename, &file.Filepath, &file.Size, &audioID); err != nil {
			return nil, err
		}
		file.AudioMetadatumID = int64Ptr(audioID)
		files[file.Filename] = append(files[file.Filename], file)
	}
	return files, rows.Err()
}
