package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const campaignColumns = `id, name, description, instructions_url, start, "end", annotation_set_id, confidence_indicator_set_id, owner_id, usage, created_at`

func scanCampaign(scanner rowScanner) (*AnnotationCampaign, error) {
	var (
		campaign     AnnotationCampaign
		description  sql.NullString
		instructions sql.NullString
		start        sql.NullString
		end          sql.NullString
		indicatorSet sql.NullInt64
		owner        sql.NullInt64
		usage        int
		created      string
	)
	if err := scanner.Scan(
		&campaign.ID,
		&campaign.Name,
		&description,
		&instructions,
		&start,
		&end,
		&campaign.AnnotationSetID,
		&indicatorSet,
		&owner,
		&usage,
		&created,
	); err != nil {
		return nil, err
	}
	campaign.Description = description.String
	campaign.InstructionsURL = instructions.String
	campaign.Start = timePtr(start)
	campaign.End = timePtr(end)
	campaign.ConfidenceIndicatorSetID = int64Ptr(indicatorSet)
	campaign.OwnerID = int64Ptr(owner)
	campaign.Usage = CampaignUsage(usage)
	if t, err := parseTimeString(created); err == nil {
		campaign.CreatedAt = t
	}
	return &campaign, nil
}

func (s *Store) CreateAnnotationSet(ctx context.Context, name, description string) (*AnnotationSet, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("annotation set name is required")
	}
	id, err := s.insertWithRetry(ctx,
		`INSERT INTO annotation_sets (name, description) VALUES (?, ?)`,
		name, nullableString(description))
	if err != nil {
		return nil, fmt.Errorf("insert annotation set: %w", err)
	}
	return &AnnotationSet{ID: id, Name: name, Description: description}, nil
}

// AddAnnotationTag links a tag to a set, creating the tag when needed. Tag
// names are global and shared between sets.
func (s *Store) AddAnnotationTag(ctx context.Context, setID int64, name string) (*AnnotationTag, error) {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("annotation tag name is required")
	}
	var tag AnnotationTag
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO annotation_tags (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name); err != nil {
			return err
		}
		if err := tx.QueryRowContext(ctx, `SELECT id, name FROM annotation_tags WHERE name = ?`, name).Scan(&tag.ID, &tag.Name); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO annotation_set_tags (annotation_set_id, annotation_tag_id) VALUES (?, ?)`,
			setID, tag.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("add annotation tag: %w", err)
	}
	return &tag, nil
}

func (s *Store) CreateConfidenceIndicatorSet(ctx context.Context, name string) (*ConfidenceIndicatorSet, error) {
	id, err := s.insertWithRetry(ctx, `INSERT INTO confidence_indicator_sets (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("insert confidence indicator set: %w", err)
	}
	return &ConfidenceIndicatorSet{ID: id, Name: name}, nil
}

// AddConfidenceIndicator adds a label to a set. Labels are unique per set.
func (s *Store) AddConfidenceIndicator(ctx context.Context, indicator ConfidenceIndicator) (*ConfidenceIndicator, error) {
	id, err := s.insertWithRetry(ctx,
		`INSERT INTO confidence_indicators (label, level, is_default, confidence_indicator_set_id) VALUES (?, ?, ?, ?)`,
		indicator.Label, indicator.Level, boolToInt(indicator.IsDefault), indicator.SetID)
	if err != nil {
		return nil, fmt.Errorf("insert confidence indicator: %w", err)
	}
	indicator.ID = id
	return &indicator, nil
}

func (s *Store) CreateCampaign(ctx context.Context, campaign AnnotationCampaign) (*AnnotationCampaign, error) {
	if strings.TrimSpace(campaign.Name) == "" {
		return nil, errors.New("campaign name is required")
	}
	if campaign.CreatedAt.IsZero() {
		campaign.CreatedAt = time.Now().UTC()
	}
	id, err := s.insertWithRetry(ctx, `
		INSERT INTO annotation_campaigns (
			name, description, instructions_url, start, "end",
			annotation_set_id, confidence_indicator_set_id, owner_id, usage, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		campaign.Name,
		nullableString(campaign.Description),
		nullableString(campaign.InstructionsURL),
		nullableTime(campaign.Start),
		nullableTime(campaign.End),
		campaign.AnnotationSetID,
		nullableInt64(campaign.ConfidenceIndicatorSetID),
		nullableInt64(campaign.OwnerID),
		int(campaign.Usage),
		formatTime(campaign.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert campaign: %w", err)
	}
	campaign.ID = id
	return &campaign, nil
}

func (s *Store) AttachCampaignSpectroConfig(ctx context.Context, campaignID, cfgID int64) error {
	if _, err := s.execWithRetry(ctx,
		`INSERT OR IGNORE INTO annotation_campaign_spectro_configs (annotation_campaign_id, spectro_config_id) VALUES (?, ?)`,
		campaignID, cfgID); err != nil {
		return fmt.Errorf("attach campaign spectro config: %w", err)
	}
	return nil
}

func (s *Store) CampaignByID(ctx context.Context, id int64) (*AnnotationCampaign, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+campaignColumns+` FROM annotation_campaigns WHERE id = ?`, id)
	campaign, err := scanCampaign(row)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("campaign by id: %w", err)
	}
	return campaign, nil
}

// ListCampaigns returns campaigns ordered by id.
func (s *Store) ListCampaigns(ctx context.Context) ([]AnnotationCampaign, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT `+campaignColumns+` FROM annotation_campaigns ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []AnnotationCampaign
	for rows.Next() {
		campaign, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, *campaign)
	}
	return campaigns, rows.Err()
}

// CampaignTags returns the tags of the campaign's annotation set ordered by name.
func (s *Store) CampaignTags(ctx context.Context, campaignID int64) ([]AnnotationTag, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `
		SELECT t.id, t.name
		FROM annotation_tags t
		JOIN annotation_set_tags st ON st.annotation_tag_id = t.id
		JOIN annotation_campaigns c ON c.annotation_set_id = st.annotation_set_id
		WHERE c.id = ?
		ORDER BY t.name`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("campaign tags: %w", err)
	}
	defer rows.Close()

	var tags []AnnotationTag
	for rows.Next() {
		var tag AnnotationTag
		if err := rows.Scan(&tag.ID, &tag.Name); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// CampaignTagNames returns the tag names of the campaign ordered by name.
func (s *Store) CampaignTagNames(ctx context.Context, campaignID int64) ([]string, error) {
	tags, err := s.CampaignTags(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(tags))
	for _, tag := range tags {
		names = append(names, tag.Name)
	}
	return names, nil
}

// CommonSpectroConfigs returns configurations available for the dataset and
// selected by the campaign, ordered by id.
func (s *Store) CommonSpectroConfigs(ctx context.Context, datasetID, campaignID int64) ([]SpectroConfig, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `
		SELECT sc.id, sc.name, sc.nfft, sc.window_size, sc.overlap, sc.zoom_level, sc.description
		FROM spectro_configs sc
		JOIN dataset_spectro_configs ds ON ds.spectro_config_id = sc.id AND ds.dataset_id = ?
		JOIN annotation_campaign_spectro_configs cs ON cs.spectro_config_id = sc.id AND cs.annotation_campaign_id = ?
		ORDER BY sc.id`, datasetID, campaignID)
	if err != nil {
		return nil, fmt.Errorf("common spectro configs: %w", err)
	}
	defer rows.Close()

	var configs []SpectroConfig
	for rows.Next() {
		var (
			cfg  SpectroConfig
			desc sql.NullString
		)
		if err := rows.Scan(&cfg.ID, &cfg.Name, &cfg.NFFT, &cfg.WindowSize, &cfg.Overlap, &cfg.ZoomLevel, &desc); err != nil {
			return nil, err
		}
		cfg.Description = desc.String
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}
