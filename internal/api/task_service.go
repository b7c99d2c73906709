package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/text/unicode/norm"

	"aplose/internal/logging"
	"aplose/internal/metrics"
	"aplose/internal/spectro"
	"aplose/internal/store"
	"aplose/internal/validation"
)

// TaskStore abstracts the persistence calls of the annotation task workflow.
type TaskStore interface {
	CampaignByID(ctx context.Context, id int64) (*store.AnnotationCampaign, error)
	CampaignTags(ctx context.Context, campaignID int64) ([]store.AnnotationTag, error)
	TaskByID(ctx context.Context, id int64) (*store.AnnotationTask, error)
	TaskContext(ctx context.Context, taskID int64) (*store.TaskContext, error)
	TasksForAnnotator(ctx context.Context, campaignID, annotatorID int64) ([]store.TaskSummary, error)
	CommonSpectroConfigs(ctx context.Context, datasetID, campaignID int64) ([]store.SpectroConfig, error)
	ResultsForTask(ctx context.Context, campaignID, datasetFileID, annotatorID int64) ([]store.AnnotationResult, error)
	ResultsForCheck(ctx context.Context, campaignID, datasetFileID, annotatorID int64) ([]store.CheckResult, error)
	SubmitTask(ctx context.Context, input store.SubmitInput) (int, error)
	NextPendingTask(ctx context.Context, campaignID, annotatorID int64) (*int64, error)
}

// TaskService serves annotation tasks to annotators.
type TaskService struct {
	store     TaskStore
	staticURL string
	logger    *slog.Logger
}

// NewTaskService constructs a TaskService. staticURL prefixes dataset paths
// in audio and tile URLs.
func NewTaskService(st TaskStore, staticURL string, logger *slog.Logger) *TaskService {
	return &TaskService{
		store:     st,
		staticURL: staticURL,
		logger:    logging.NewComponentLogger(logger, "tasks"),
	}
}

// CampaignTasks lists the user's tasks in a campaign.
func (s *TaskService) CampaignTasks(ctx context.Context, campaignID, userID int64) ([]TaskSummary, error) {
	campaign, err := s.store.CampaignByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, ErrNotFound
	}
	tasks, err := s.store.TasksForAnnotator(ctx, campaignID, userID)
	if err != nil {
		return nil, err
	}
	return FromTaskSummaries(tasks), nil
}

// Retrieve builds the workspace payload of a task. Any identified user may
// open any task; prevAnnotations are computed for the requesting user.
func (s *TaskService) Retrieve(ctx context.Context, taskID, userID int64) (*TaskRetrieve, error) {
	tc, err := s.store.TaskContext(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if tc == nil {
		return nil, ErrNotFound
	}

	tags, err := s.store.CampaignTags(ctx, tc.Campaign.ID)
	if err != nil {
		return nil, err
	}
	configs, err := s.store.CommonSpectroConfigs(ctx, tc.Dataset.ID, tc.Campaign.ID)
	if err != nil {
		return nil, err
	}

	rate := AudioRate(tc)
	rootURL := spectro.RootURL(s.staticURL, tc.Dataset.DatasetPath)
	payload := &TaskRetrieve{
		CampaignID:     tc.Campaign.ID,
		CampaignUsage:  tc.Campaign.Usage.String(),
		AnnotationTags: make([]string, 0, len(tags)),
		Boundaries: TaskBoundaries{
			StartTime:      formatTime(tc.FileAudio.Start),
			EndTime:        formatTime(tc.FileAudio.End),
			StartFrequency: 0,
			EndFrequency:   rate / 2,
		},
		AudioURL:    rootURL + "/" + tc.File.Filepath,
		AudioRate:   rate,
		SpectroURLs: spectroURLs(rootURL, spectro.SoundName(tc.File.Filepath), configs),
	}
	for _, tag := range tags {
		payload.AnnotationTags = append(payload.AnnotationTags, tag.Name)
	}

	payload.PrevAnnotations, err = s.previousAnnotations(ctx, tc, userID)
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (s *TaskService) previousAnnotations(ctx context.Context, tc *store.TaskContext, userID int64) ([]PrevAnnotation, error) {
	if tc.Campaign.Usage == store.UsageCheck {
		results, err := s.store.ResultsForCheck(ctx, tc.Campaign.ID, tc.File.ID, userID)
		if err != nil {
			return nil, err
		}
		out := make([]PrevAnnotation, 0, len(results))
		for _, result := range results {
			prev := fromResult(result.AnnotationResult)
			prev.Validation = &Verdict{IsValid: result.Validation}
			out = append(out, prev)
		}
		return out, nil
	}

	results, err := s.store.ResultsForTask(ctx, tc.Campaign.ID, tc.File.ID, tc.Task.AnnotatorID)
	if err != nil {
		return nil, err
	}
	out := make([]PrevAnnotation, 0, len(results))
	for _, result := range results {
		out = append(out, fromResult(result))
	}
	return out, nil
}

// Submit stores a finished task and returns the annotator's next one.
func (s *TaskService) Submit(ctx context.Context, taskID, userID int64, req SubmitRequest) (*SubmitResponse, error) {
	task, err := s.store.TaskByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil || task.AnnotatorID != userID {
		return nil, ErrNotFound
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		return nil, verr
	}
	campaign, err := s.store.CampaignByID(ctx, task.CampaignID)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, ErrNotFound
	}

	tags, err := s.store.CampaignTags(ctx, task.CampaignID)
	if err != nil {
		return nil, err
	}
	results, verr := resolveAnnotations(req.Annotations, tags)
	if verr != nil {
		return nil, verr
	}

	output, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode session output: %w", err)
	}
	input := store.SubmitInput{
		TaskID:        task.ID,
		AnnotatorID:   userID,
		Results:       results,
		SessionStart:  time.Unix(req.TaskStartTime, 0).UTC(),
		SessionEnd:    time.Unix(req.TaskEndTime, 0).UTC(),
		SessionOutput: string(output),
	}
	for _, v := range req.Validations {
		input.Validations = append(input.Validations, store.ValidationInput{ResultID: v.ResultID, IsValid: v.IsValid})
	}

	created, err := s.store.SubmitTask(ctx, input)
	if errors.Is(err, store.ErrResultMismatch) {
		return nil, validation.NewError("validations", "result", err.Error())
	}
	if err != nil {
		return nil, err
	}
	metrics.RecordTaskSubmission(campaign.Usage.String())
	metrics.RecordResultsCreated(metrics.SourceAnnotator, created)

	logger := logging.WithContext(ctx, s.logger)
	logger.Info("annotation task submitted",
		logging.Campaign(task.CampaignID),
		logging.Task(task.ID),
		logging.Int("results", created),
		logging.Int("validations", len(input.Validations)),
	)

	next, err := s.store.NextPendingTask(ctx, task.CampaignID, userID)
	if err != nil {
		return nil, err
	}
	if next == nil {
		campaignID := task.CampaignID
		return &SubmitResponse{CampaignID: &campaignID}, nil
	}
	return &SubmitResponse{NextTask: next}, nil
}

// resolveAnnotations maps labels to tag ids. Labels are compared in NFC so
// that composed and decomposed accents match.
func resolveAnnotations(annotations []SubmitAnnotation, tags []store.AnnotationTag) ([]store.ResultInput, *validation.RequestValidationError) {
	byName := make(map[string]int64, len(tags))
	for _, tag := range tags {
		byName[norm.NFC.String(tag.Name)] = tag.ID
	}

	var verr *validation.RequestValidationError
	results := make([]store.ResultInput, 0, len(annotations))
	for i, annotation := range annotations {
		tagID, ok := byName[norm.NFC.String(annotation.Annotation)]
		if !ok {
			field := fmt.Sprintf("annotations[%d].annotation", i)
			message := fmt.Sprintf("%s %q is not a tag of this campaign", field, annotation.Annotation)
			if verr == nil {
				verr = validation.NewError(field, "tag", message)
			} else {
				verr.Add(field, "tag", message)
			}
			continue
		}
		results = append(results, store.ResultInput{
			TagID:          tagID,
			StartTime:      copyFloat(annotation.StartTime),
			EndTime:        copyFloat(annotation.EndTime),
			StartFrequency: copyFloat(annotation.StartFrequency),
			EndFrequency:   copyFloat(annotation.EndFrequency),
		})
	}
	return results, verr
}

func copyFloat(value *float64) *float64 {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}
