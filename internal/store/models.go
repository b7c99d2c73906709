package store

import (
	"fmt"
	"strings"
	"time"
)

// CampaignUsage describes what annotators do inside a campaign.
type CampaignUsage int

const (
	// UsageCreate campaigns have annotators draw new boxes.
	UsageCreate CampaignUsage = 0
	// UsageCheck campaigns have annotators validate existing results.
	UsageCheck CampaignUsage = 1
)

func (u CampaignUsage) String() string {
	switch u {
	case UsageCreate:
		return "Create"
	case UsageCheck:
		return "Check"
	default:
		return fmt.Sprintf("CampaignUsage(%d)", int(u))
	}
}

// ParseCampaignUsage accepts the display names case-insensitively.
func ParseCampaignUsage(value string) (CampaignUsage, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "create":
		return UsageCreate, nil
	case "check":
		return UsageCheck, nil
	default:
		return UsageCreate, fmt.Errorf("unknown campaign usage %q", value)
	}
}

// TaskStatus represents the lifecycle of an annotation task.
type TaskStatus int

const (
	TaskCreated  TaskStatus = 0
	TaskStarted  TaskStatus = 1
	TaskFinished TaskStatus = 2
)

var allTaskStatuses = []TaskStatus{TaskCreated, TaskStarted, TaskFinished}

// AllTaskStatuses returns every status in lifecycle order.
func AllTaskStatuses() []TaskStatus {
	out := make([]TaskStatus, len(allTaskStatuses))
	copy(out, allTaskStatuses)
	return out
}

func (s TaskStatus) String() string {
	switch s {
	case TaskCreated:
		return "created"
	case TaskStarted:
		return "started"
	case TaskFinished:
		return "finished"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

type User struct {
	ID         int64
	Username   string
	Token      string
	DateJoined time.Time
}

type AudioMetadatum struct {
	ID            int64
	Start         *time.Time
	End           *time.Time
	SampleRateKHz *float64
}

type Dataset struct {
	ID               int64
	Name             string
	DatasetPath      string
	AudioMetadatumID *int64
}

type DatasetFile struct {
	ID               int64
	DatasetID        int64
	Filename         string
	Filepath         string
	Size             int64
	AudioMetadatumID *int64
}

type SpectroConfig struct {
	ID          int64
	Name        string
	NFFT        int
	WindowSize  int
	Overlap     float64
	ZoomLevel   int
	Description string
}

type AnnotationSet struct {
	ID          int64
	Name        string
	Description string
}

type AnnotationTag struct {
	ID   int64
	Name string
}

type ConfidenceIndicatorSet struct {
	ID   int64
	Name string
}

type ConfidenceIndicator struct {
	ID        int64
	SetID     int64
	Label     string
	Level     int
	IsDefault bool
}

// AnnotationCampaign groups dataset files, a tag set and spectrogram
// configurations under one annotation goal.
type AnnotationCampaign struct {
	ID                       int64
	Name                     string
	Description              string
	InstructionsURL          string
	Start                    *time.Time
	End                      *time.Time
	AnnotationSetID          int64
	ConfidenceIndicatorSetID *int64
	OwnerID                  *int64
	Usage                    CampaignUsage
	CreatedAt                time.Time
}

// AnnotationTask assigns one dataset file of a campaign to one annotator.
type AnnotationTask struct {
	ID            int64
	CampaignID    int64
	AnnotatorID   int64
	DatasetFileID int64
	Status        TaskStatus
}

// TaskContext is a task with everything needed to render its workspace.
type TaskContext struct {
	Task         AnnotationTask
	Campaign     AnnotationCampaign
	File         DatasetFile
	Dataset      Dataset
	FileAudio    AudioMetadatum
	DatasetAudio AudioMetadatum
}

// TaskSummary is one row of an annotator's campaign task list.
type TaskSummary struct {
	ID          int64
	Status      TaskStatus
	Filename    string
	DatasetName string
	Start       *time.Time
	End         *time.Time
}

// AnnotationResult is a tagged time/frequency box authored by exactly one of
// an annotator or a detector configuration.
type AnnotationResult struct {
	ID                      int64
	CampaignID              int64
	AnnotatorID             *int64
	DetectorConfigurationID *int64
	DatasetFileID           int64
	TagID                   int64
	TagName                 string
	ConfidenceIndicatorID   *int64
	StartTime               *float64
	EndTime                 *float64
	StartFrequency          *float64
	EndFrequency            *float64
}

// CheckResult pairs a result with the reviewing annotator's validation.
type CheckResult struct {
	AnnotationResult
	Validation *bool
}

type AnnotationResultValidation struct {
	ID          int64
	ResultID    int64
	AnnotatorID int64
	IsValid     *bool
}

type AnnotationSession struct {
	ID            int64
	TaskID        int64
	Start         time.Time
	End           time.Time
	SessionOutput string
}

type Detector struct {
	ID   int64
	Name string
}

type DetectorConfiguration struct {
	ID            int64
	DetectorID    int64
	Configuration string
}

// News is a dated site announcement with an HTML body.
type News struct {
	ID       int64
	Title    string
	Intro    string
	Body     string
	Date     *time.Time
	Vignette string
}

// ResultInput is one annotator-drawn box to persist.
type ResultInput struct {
	TagID                 int64
	ConfidenceIndicatorID *int64
	StartTime             *float64
	EndTime               *float64
	StartFrequency        *float64
	EndFrequency          *float64
}

// ValidationInput records an annotator's verdict on an existing result.
type ValidationInput struct {
	ResultID int64
	IsValid  *bool
}

// SubmitInput carries one completed annotation task.
type SubmitInput struct {
	TaskID        int64
	AnnotatorID   int64
	Results       []ResultInput
	Validations   []ValidationInput
	SessionStart  time.Time
	SessionEnd    time.Time
	SessionOutput string
}

// DetectorResultInput is one detector-produced box for a dataset file.
type DetectorResultInput struct {
	DatasetFileID  int64
	TagID          int64
	StartTime      *float64
	EndTime        *float64
	StartFrequency *float64
	EndFrequency   *float64
}

// DatabaseHealth contains diagnostic information about the database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	PendingMigration []string
	MissingTables    []string
	IntegrityCheck   bool
	TotalTasks       int
	Error            string
}

// Healthy reports whether nothing in the health check needs attention.
func (h DatabaseHealth) Healthy() bool {
	return h.DatabaseExists && h.DatabaseReadable && h.IntegrityCheck &&
		len(h.MissingTables) == 0 && len(h.PendingMigration) == 0 && h.Error == ""
}
