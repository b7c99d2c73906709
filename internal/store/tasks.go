package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"aplose/internal/metrics"
)

// Tasks without a recorded audio start sort after dated ones.
const taskOrder = `fa.start IS NULL, fa.start, t.id`

func (s *Store) CreateTask(ctx context.Context, task AnnotationTask) (*AnnotationTask, error) {
	id, err := s.insertWithRetry(ctx, `
		INSERT INTO annotation_tasks (status, annotation_campaign_id, dataset_file_id, annotator_id)
		VALUES (?, ?, ?, ?)`,
		int(task.Status), task.CampaignID, task.DatasetFileID, task.AnnotatorID)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	task.ID = id
	return &task, nil
}

func (s *Store) TaskByID(ctx context.Context, id int64) (*AnnotationTask, error) {
	var (
		task   AnnotationTask
		status int
	)
	err := s.db.QueryRowContext(ensureContext(ctx), `
		SELECT id, annotation_campaign_id, annotator_id, dataset_file_id, status
		FROM annotation_tasks WHERE id = ?`, id).
		Scan(&task.ID, &task.CampaignID, &task.AnnotatorID, &task.DatasetFileID, &status)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("task by id: %w", err)
	}
	task.Status = TaskStatus(status)
	return &task, nil
}

// SetTaskStatus moves a task through its lifecycle.
func (s *Store) SetTaskStatus(ctx context.Context, id int64, status TaskStatus) error {
	res, err := s.execWithRetry(ctx, `UPDATE annotation_tasks SET status = ? WHERE id = ?`, int(status), id)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %d not found", id)
	}
	return nil
}

// TaskContext loads a task together with its campaign, file, dataset and both
// audio metadata rows.
func (s *Store) TaskContext(ctx context.Context, taskID int64) (*TaskContext, error) {
	defer metrics.ObserveDBQuery("task_context", time.Now())

	row := s.db.QueryRowContext(ensureContext(ctx), `
		SELECT
			t.id, t.annotation_campaign_id, t.annotator_id, t.dataset_file_id, t.status,
			`+prefixed("c", campaignColumns)+`,
			f.id, f.dataset_id, f.filename, f.filepath, f.size, f.audio_metadatum_id,
			d.id, d.name, d.dataset_path, d.audio_metadatum_id,
			fa.id, fa.start, fa."end", fa.sample_rate_khz,
			da.id, da.start, da."end", da.sample_rate_khz
		FROM annotation_tasks t
		JOIN annotation_campaigns c ON c.id = t.annotation_campaign_id
		JOIN dataset_files f ON f.id = t.dataset_file_id
		JOIN datasets d ON d.id = f.dataset_id
		LEFT JOIN audio_metadata fa ON fa.id = f.audio_metadatum_id
		LEFT JOIN audio_metadata da ON da.id = d.audio_metadatum_id
		WHERE t.id = ?`, taskID)

	var (
		tc           TaskContext
		status       int
		description  sql.NullString
		instructions sql.NullString
		cStart       sql.NullString
		cEnd         sql.NullString
		indicatorSet sql.NullInt64
		owner        sql.NullInt64
		usage        int
		created      string
		fileAudioRef sql.NullInt64
		dataAudioRef sql.NullInt64
		fa, da       audioColumns
	)
	err := row.Scan(
		&tc.Task.ID, &tc.Task.CampaignID, &tc.Task.AnnotatorID, &tc.Task.DatasetFileID, &status,
		&tc.Campaign.ID, &tc.Campaign.Name, &description, &instructions, &cStart, &cEnd,
		&tc.Campaign.AnnotationSetID, &indicatorSet, &owner, &usage, &created,
		&tc.File.ID, &tc.File.DatasetID, &tc.File.Filename, &tc.File.Filepath, &tc.File.Size, &fileAudioRef,
		&tc.Dataset.ID, &tc.Dataset.Name, &tc.Dataset.DatasetPath, &dataAudioRef,
		&fa.id, &fa.start, &fa.end, &fa.rate,
		&da.id, &da.start, &da.end, &da.rate,
	)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("task context: %w", err)
	}

	tc.Task.Status = TaskStatus(status)
	tc.Campaign.Description = description.String
	tc.Campaign.InstructionsURL = instructions.String
	tc.Campaign.Start = timePtr(cStart)
	tc.Campaign.End = timePtr(cEnd)
	tc.Campaign.ConfidenceIndicatorSetID = int64Ptr(indicatorSet)
	tc.Campaign.OwnerID = int64Ptr(owner)
	tc.Campaign.Usage = CampaignUsage(usage)
	if t, err := parseTimeString(created); err == nil {
		tc.Campaign.CreatedAt = t
	}
	tc.File.AudioMetadatumID = int64Ptr(fileAudioRef)
	tc.Dataset.AudioMetadatumID = int64Ptr(dataAudioRef)
	tc.FileAudio = fa.metadatum()
	tc.DatasetAudio = da.metadatum()
	return &tc, nil
}

type audioColumns struct {
	id    sql.NullInt64
	start sql.NullString
	end   sql.NullString
	rate  sql.NullFloat64
}

func (a audioColumns) metadatum() AudioMetadatum {
	return AudioMetadatum{
		ID:            a.id.Int64,
		Start:         timePtr(a.start),
		End:           timePtr(a.end),
		SampleRateKHz: floatPtr(a.rate),
	}
}

// TasksForAnnotator lists the annotator's tasks in a campaign ordered by file
// audio start, ties by id.
func (s *Store) TasksForAnnotator(ctx context.Context, campaignID, annotatorID int64) ([]TaskSummary, error) {
	defer metrics.ObserveDBQuery("tasks_for_annotator", time.Now())

	rows, err := s.db.QueryContext(ensureContext(ctx), `
		SELECT t.id, t.status, f.filename, d.name, fa.start, fa."end"
		FROM annotation_tasks t
		JOIN dataset_files f ON f.id = t.dataset_file_id
		JOIN datasets d ON d.id = f.dataset_id
		LEFT JOIN audio_metadata fa ON fa.id = f.audio_metadatum_id
		WHERE t.annotation_campaign_id = ? AND t.annotator_id = ?
		ORDER BY `+taskOrder, campaignID, annotatorID)
	if err != nil {
		return nil, fmt.Errorf("tasks for annotator: %w", err)
	}
	defer rows.Close()

	tasks := []TaskSummary{}
	for rows.Next() {
		var (
			summary TaskSummary
			status  int
			start   sql.NullString
			end     sql.NullString
		)
		if err := rows.Scan(&summary.ID, &status, &summary.Filename, &summary.DatasetName, &start, &end); err != nil {
			return nil, err
		}
		summary.Status = TaskStatus(status)
		summary.Start = timePtr(start)
		summary.End = timePtr(end)
		tasks = append(tasks, summary)
	}
	return tasks, rows.Err()
}

// NextPendingTask returns the first unfinished task for the annotator in the
// campaign using the task list ordering, or nil when none remain.
func (s *Store) NextPendingTask(ctx context.Context, campaignID, annotatorID int64) (*int64, error) {
	var id int64
	err := s.db.QueryRowContext(ensureContext(ctx), `
		SELECT t.id
		FROM annotation_tasks t
		JOIN dataset_files f ON f.id = t.dataset_file_id
		LEFT JOIN audio_metadata fa ON fa.id = f.audio_metadatum_id
		WHERE t.annotation_campaign_id = ? AND t.annotator_id = ? AND t.status != ?
		ORDER BY `+taskOrder+`
		LIMIT 1`, campaignID, annotatorID, int(TaskFinished)).Scan(&id)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next pending task: %w", err)
	}
	return &id, nil
}

// Stats returns a count of tasks grouped by status.
func (s *Store) Stats(ctx context.Context) (map[TaskStatus]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM annotation_tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[TaskStatus]int)
	for rows.Next() {
		var status, count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[TaskStatus(status)] = count
	}
	return stats, rows.Err()
}
