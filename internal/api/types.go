package api

import "github.com/goccy/go-json"

// TaskSummary is one row of an annotator's campaign task list.
type TaskSummary struct {
	ID          int64   `json:"id"`
	Status      int     `json:"status"`
	Filename    string  `json:"filename"`
	DatasetName string  `json:"dataset_name"`
	Start       *string `json:"start"`
	End         *string `json:"end"`
}

// TaskBoundaries frames the spectrogram: audio time span and 0..Nyquist.
type TaskBoundaries struct {
	StartTime      *string `json:"startTime"`
	EndTime        *string `json:"endTime"`
	StartFrequency float64 `json:"startFrequency"`
	EndFrequency   float64 `json:"endFrequency"`
}

// SpectroURLs lists the tile URLs of one spectrogram configuration.
type SpectroURLs struct {
	NFFT    int      `json:"nfft"`
	WinSize int      `json:"winsize"`
	Overlap float64  `json:"overlap"`
	URLs    []string `json:"urls"`
}

// PrevAnnotation is an existing result shown in the task workspace.
// Validation is only set for Check campaigns; Create payloads omit the key.
type PrevAnnotation struct {
	ID             int64    `json:"id"`
	Annotation     string   `json:"annotation"`
	StartTime      *float64 `json:"startTime"`
	EndTime        *float64 `json:"endTime"`
	StartFrequency *float64 `json:"startFrequency"`
	EndFrequency   *float64 `json:"endFrequency"`
	Validation     *Verdict `json:"validation,omitempty"`
}

// Verdict is the requesting annotator's opinion of a result. A nil IsValid
// encodes as null: the result is still awaiting review.
type Verdict struct {
	IsValid *bool
}

func (v Verdict) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.IsValid)
}

func (v *Verdict) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &v.IsValid)
}

// TaskRetrieve is the payload served when an annotator opens a task.
type TaskRetrieve struct {
	CampaignID      int64            `json:"campaignId"`
	CampaignUsage   string           `json:"campaignUsage"`
	AnnotationTags  []string         `json:"annotationTags"`
	Boundaries      TaskBoundaries   `json:"boundaries"`
	AudioURL        string           `json:"audioUrl"`
	AudioRate       float64          `json:"audioRate"`
	SpectroURLs     []SpectroURLs    `json:"spectroUrls"`
	PrevAnnotations []PrevAnnotation `json:"prevAnnotations"`
}

// SubmitAnnotation is one box drawn by the annotator. Every coordinate is
// required; zero is a valid value.
type SubmitAnnotation struct {
	Annotation     string   `json:"annotation" validate:"required"`
	StartTime      *float64 `json:"startTime" validate:"required,gte=0"`
	EndTime        *float64 `json:"endTime" validate:"required,gtefield=StartTime"`
	StartFrequency *float64 `json:"startFrequency" validate:"required,gte=0"`
	EndFrequency   *float64 `json:"endFrequency" validate:"required,gtefield=StartFrequency"`
}

// SubmitValidation is the annotator's verdict on an existing result.
type SubmitValidation struct {
	ResultID int64 `json:"result_id" validate:"required,gt=0"`
	IsValid  *bool `json:"is_valid"`
}

// SubmitRequest closes an annotation task. Times are unix seconds.
type SubmitRequest struct {
	Annotations   []SubmitAnnotation `json:"annotations" validate:"required,dive"`
	Validations   []SubmitValidation `json:"validations,omitempty" validate:"dive"`
	TaskStartTime int64              `json:"task_start_time" validate:"required,gt=0"`
	TaskEndTime   int64              `json:"task_end_time" validate:"required,gtefield=TaskStartTime"`
}

// SubmitResponse points at the next task, or back at the campaign when the
// annotator has nothing left.
type SubmitResponse struct {
	NextTask   *int64 `json:"next_task"`
	CampaignID *int64 `json:"campaign_id"`
}

// NewsItem describes a site announcement.
type NewsItem struct {
	ID       int64   `json:"id"`
	Title    string  `json:"title"`
	Intro    string  `json:"intro"`
	Body     string  `json:"body"`
	Date     *string `json:"date"`
	Vignette string  `json:"vignette"`
}

// NewsList is a page of announcements with the total count.
type NewsList struct {
	Count   int        `json:"count"`
	Results []NewsItem `json:"results"`
}

// NewsInput creates or replaces an announcement. Date is YYYY-MM-DD.
type NewsInput struct {
	Title    string `json:"title" validate:"required,max=255"`
	Intro    string `json:"intro" validate:"max=255"`
	Body     string `json:"body"`
	Date     string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Vignette string `json:"vignette" validate:"omitempty,http_url,max=255"`
}
