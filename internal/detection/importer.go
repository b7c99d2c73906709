package detection

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"aplose/internal/logging"
	"aplose/internal/metrics"
	"aplose/internal/store"
)

// ErrCampaignNotFound is returned when the target campaign does not exist.
var ErrCampaignNotFound = errors.New("campaign not found")

// Column names of the detection CSV header.
const (
	ColumnFilename       = "filename"
	ColumnStartTime      = "start_time"
	ColumnEndTime        = "end_time"
	ColumnStartFrequency = "start_frequency"
	ColumnEndFrequency   = "end_frequency"
	ColumnAnnotation     = "annotation"
)

var requiredColumns = []string{
	ColumnFilename,
	ColumnStartTime,
	ColumnEndTime,
	ColumnStartFrequency,
	ColumnEndFrequency,
	ColumnAnnotation,
}

// Store is the persistence surface used by the importer.
type Store interface {
	CampaignByID(ctx context.Context, id int64) (*store.AnnotationCampaign, error)
	CampaignFiles(ctx context.Context, campaignID int64) (map[string][]store.DatasetFile, error)
	CampaignTags(ctx context.Context, campaignID int64) ([]store.AnnotationTag, error)
	ImportDetectorResults(ctx context.Context, campaignID int64, detectorName, configuration string, results []store.DetectorResultInput) (*store.DetectorImport, error)
}

// Skipped describes a CSV row that was not imported. Line is 1-based and
// counts the header.
type Skipped struct {
	Line   int
	Reason string
}

// Result summarizes one import.
type Result struct {
	DetectorID      int64
	ConfigurationID int64
	Imported        int
	Skipped         []Skipped
}

// Importer loads detector CSV output into campaigns.
type Importer struct {
	store  Store
	logger *slog.Logger
}

// NewImporter constructs an Importer.
func NewImporter(st Store, logger *slog.Logger) *Importer {
	return &Importer{store: st, logger: logging.NewComponentLogger(logger, "detection")}
}

// Import reads detections from r and stores them as results of a new
// configuration of detectorName. Nothing is written when no row is
// importable.
func (im *Importer) Import(ctx context.Context, campaignID int64, detectorName, configuration string, r io.Reader) (*Result, error) {
	detectorName = strings.TrimSpace(detectorName)
	if detectorName == "" {
		return nil, errors.New("detector name is required")
	}

	campaign, err := im.store.CampaignByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, fmt.Errorf("%w: %d", ErrCampaignNotFound, campaignID)
	}
	files, err := im.store.CampaignFiles(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	tags, err := im.store.CampaignTags(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	tagIDs := make(map[string]int64, len(tags))
	for _, tag := range tags {
		tagIDs[norm.NFC.String(tag.Name)] = tag.ID
	}

	rows, skipped, err := parseRows(r, files, tagIDs)
	if err != nil {
		return nil, err
	}
	result := &Result{Skipped: skipped}
	if len(rows) == 0 {
		return result, nil
	}

	imported, err := im.store.ImportDetectorResults(ctx, campaignID, detectorName, configuration, rows)
	if err != nil {
		return nil, err
	}
	metrics.RecordResultsCreated(metrics.SourceDetector, imported.Inserted)

	result.DetectorID = imported.DetectorID
	result.ConfigurationID = imported.ConfigurationID
	result.Imported = imported.Inserted

	logging.WithContext(ctx, im.logger).Info("detections imported",
		logging.Campaign(campaignID),
		logging.String("detector", detectorName),
		logging.Int("imported", imported.Inserted),
		logging.Int("skipped", len(skipped)),
	)
	return result, nil
}

func parseRows(r io.Reader, files map[string][]store.DatasetFile, tagIDs map[string]int64) ([]store.DetectorResultInput, []Skipped, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, errors.New("detections file is empty")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	columns, err := headerIndex(header)
	if err != nil {
		return nil, nil, err
	}

	var (
		rows    []store.DetectorResultInput
		skipped []Skipped
	)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read line %d: %w", line, err)
		}
		if blank(record) {
			continue
		}
		row, reason := parseRecord(record, columns, files, tagIDs)
		if reason != "" {
			skipped = append(skipped, Skipped{Line: line, Reason: reason})
			continue
		}
		rows = append(rows, row)
	}
	return rows, skipped, nil
}

func headerIndex(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		columns[name] = i
	}
	var missing []string
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("detections header missing columns: %s", strings.Join(missing, ", "))
	}
	return columns, nil
}

func parseRecord(record []string, columns map[string]int, files map[string][]store.DatasetFile, tagIDs map[string]int64) (store.DetectorResultInput, string) {
	field := func(name string) string {
		idx := columns[name]
		if idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var row store.DetectorResultInput
	filename := field(ColumnFilename)
	matches := files[filename]
	switch len(matches) {
	case 0:
		return row, fmt.Sprintf("unknown file %q", filename)
	case 1:
	default:
		return row, fmt.Sprintf("ambiguous file %q: %d dataset files share this name", filename, len(matches))
	}
	file := matches[0]
	label := field(ColumnAnnotation)
	tagID, ok := tagIDs[norm.NFC.String(label)]
	if !ok {
		return row, fmt.Sprintf("unknown annotation %q", label)
	}
	row.DatasetFileID = file.ID
	row.TagID = tagID

	var err error
	if row.StartTime, err = parseFloat(field(ColumnStartTime)); err != nil {
		return row, fmt.Sprintf("%s: %v", ColumnStartTime, err)
	}
	if row.EndTime, err = parseFloat(field(ColumnEndTime)); err != nil {
		return row, fmt.Sprintf("%s: %v", ColumnEndTime, err)
	}
	if row.StartFrequency, err = parseFloat(field(ColumnStartFrequency)); err != nil {
		return row, fmt.Sprintf("%s: %v", ColumnStartFrequency, err)
	}
	if row.EndFrequency, err = parseFloat(field(ColumnEndFrequency)); err != nil {
		return row, fmt.Sprintf("%s: %v", ColumnEndFrequency, err)
	}
	if reversed(row.StartTime, row.EndTime) {
		return row, "end_time before start_time"
	}
	if reversed(row.StartFrequency, row.EndFrequency) {
		return row, "end_frequency below start_frequency"
	}
	return row, ""
}

// parseFloat returns nil for empty values; a result may omit either axis.
func parseFloat(value string) (*float64, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", value)
	}
	if parsed < 0 {
		return nil, fmt.Errorf("negative value %q", value)
	}
	return &parsed, nil
}

func reversed(start, end *float64) bool {
	return start != nil && end != nil && *end < *start
}

func blank(record []string) bool {
	for _, value := range record {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}
