package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"aplose/internal/metrics"
)

// ErrResultMismatch reports a validation that targets a result outside the
// task's campaign and dataset file.
var ErrResultMismatch = errors.New("result does not belong to this task")

const resultSelect = `
	SELECT r.id, r.annotation_campaign_id, r.annotator_id, r.detector_configuration_id,
		r.dataset_file_id, r.annotation_tag_id, g.name, r.confidence_indicator_id,
		r.start_time, r.end_time, r.start_frequency, r.end_frequency`

func scanResult(scanner rowScanner, extra ...any) (*AnnotationResult, error) {
	var (
		result     AnnotationResult
		annotator  sql.NullInt64
		detector   sql.NullInt64
		confidence sql.NullInt64
		startTime  sql.NullFloat64
		endTime    sql.NullFloat64
		startFreq  sql.NullFloat64
		endFreq    sql.NullFloat64
	)
	dest := []any{
		&result.ID, &result.CampaignID, &annotator, &detector,
		&result.DatasetFileID, &result.TagID, &result.TagName, &confidence,
		&startTime, &endTime, &startFreq, &endFreq,
	}
	if err := scanner.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	result.AnnotatorID = int64Ptr(annotator)
	result.DetectorConfigurationID = int64Ptr(detector)
	result.ConfidenceIndicatorID = int64Ptr(confidence)
	result.StartTime = floatPtr(startTime)
	result.EndTime = floatPtr(endTime)
	result.StartFrequency = floatPtr(startFreq)
	result.EndFrequency = floatPtr(endFreq)
	return &result, nil
}

// ResultsForTask returns the annotator's own results on a campaign file.
func (s *Store) ResultsForTask(ctx context.Context, campaignID, datasetFileID, annotatorID int64) ([]AnnotationResult, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), resultSelect+`
		FROM annotation_results r
		JOIN annotation_tags g ON g.id = r.annotation_tag_id
		WHERE r.annotation_campaign_id = ? AND r.dataset_file_id = ? AND r.annotator_id = ?
		ORDER BY r.id`, campaignID, datasetFileID, annotatorID)
	if err != nil {
		return nil, fmt.Errorf("results for task: %w", err)
	}
	defer rows.Close()

	results := []AnnotationResult{}
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *result)
	}
	return results, rows.Err()
}

// ResultsForCheck returns results on a campaign file authored by anyone but
// the reviewing annotator, with that annotator's validation when present.
func (s *Store) ResultsForCheck(ctx context.Context, campaignID, datasetFileID, annotatorID int64) ([]CheckResult, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), resultSelect+`, v.is_valid
		FROM annotation_results r
		JOIN annotation_tags g ON g.id = r.annotation_tag_id
		LEFT JOIN annotation_result_validations v ON v.result_id = r.id AND v.annotator_id = ?
		WHERE r.annotation_campaign_id = ? AND r.dataset_file_id = ?
			AND (r.annotator_id IS NULL OR r.annotator_id != ?)
		ORDER BY r.id`, annotatorID, campaignID, datasetFileID, annotatorID)
	if err != nil {
		return nil, fmt.Errorf("results for check: %w", err)
	}
	defer rows.Close()

	results := []CheckResult{}
	for rows.Next() {
		var valid sql.NullInt64
		result, err := scanResult(rows, &valid)
		if err != nil {
			return nil, err
		}
		results = append(results, CheckResult{AnnotationResult: *result, Validation: boolPtr(valid)})
	}
	return results, rows.Err()
}

// SubmitTask replaces the annotator's results for the task's file, records
// validations and the session, and marks the task finished. It returns the
// number of results written.
func (s *Store) SubmitTask(ctx context.Context, input SubmitInput) (int, error) {
	ctx = ensureContext(ctx)
	defer metrics.ObserveDBQuery("submit_task", time.Now())

	var created int
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		created = 0
		var campaignID, fileID, annotatorID int64
		err := tx.QueryRowContext(ctx,
			`SELECT annotation_campaign_id, dataset_file_id, annotator_id FROM annotation_tasks WHERE id = ?`,
			input.TaskID).Scan(&campaignID, &fileID, &annotatorID)
		if err != nil {
			return fmt.Errorf("load task %d: %w", input.TaskID, err)
		}
		if annotatorID != input.AnnotatorID {
			return fmt.Errorf("task %d is assigned to another annotator", input.TaskID)
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM annotation_results
			WHERE annotation_campaign_id = ? AND dataset_file_id = ? AND annotator_id = ?`,
			campaignID, fileID, annotatorID); err != nil {
			return fmt.Errorf("clear previous results: %w", err)
		}

		for _, result := range input.Results {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO annotation_results (
					annotation_campaign_id, annotator_id, dataset_file_id, detector_configuration_id,
					annotation_tag_id, confidence_indicator_id, start_time, end_time, start_frequency, end_frequency
				) VALUES (?, ?, ?, NULL, ?, ?, ?, ?, ?, ?)`,
				campaignID, annotatorID, fileID,
				result.TagID, nullableInt64(result.ConfidenceIndicatorID),
				nullableFloat(result.StartTime), nullableFloat(result.EndTime),
				nullableFloat(result.StartFrequency), nullableFloat(result.EndFrequency),
			); err != nil {
				return fmt.Errorf("insert result: %w", err)
			}
			created++
		}

		for _, validation := range input.Validations {
			if err := upsertValidation(ctx, tx, campaignID, fileID, annotatorID, validation); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO annotation_sessions (annotation_task_id, start, "end", session_output)
			VALUES (?, ?, ?, ?)`,
			input.TaskID, formatTime(input.SessionStart), formatTime(input.SessionEnd), input.SessionOutput,
		); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `UPDATE annotation_tasks SET status = ? WHERE id = ?`,
			int(TaskFinished), input.TaskID); err != nil {
			return fmt.Errorf("finish task: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("submit task: %w", err)
	}
	return created, nil
}

func upsertValidation(ctx context.Context, tx *sql.Tx, campaignID, fileID, annotatorID int64, validation ValidationInput) error {
	var count int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM annotation_results
		WHERE id = ? AND annotation_campaign_id = ? AND dataset_file_id = ?`,
		validation.ResultID, campaignID, fileID).Scan(&count); err != nil {
		return fmt.Errorf("check validated result: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("%w: result %d", ErrResultMismatch, validation.ResultID)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO annotation_result_validations (is_valid, annotator_id, result_id)
		VALUES (?, ?, ?)
		ON CONFLICT(result_id, annotator_id) DO UPDATE SET is_valid = excluded.is_valid`,
		nullableBool(validation.IsValid), annotatorID, validation.ResultID); err != nil {
		return fmt.Errorf("upsert validation: %w", err)
	}
	return nil
}

// AddValidation records or replaces an annotator's verdict on a result.
func (s *Store) AddValidation(ctx context.Context, resultID, annotatorID int64, isValid *bool) error {
	if _, err := s.execWithRetry(ctx, `
		INSERT INTO annotation_result_validations (is_valid, annotator_id, result_id)
		VALUES (?, ?, ?)
		ON CONFLICT(result_id, annotator_id) DO UPDATE SET is_valid = excluded.is_valid`,
		nullableBool(isValid), annotatorID, resultID); err != nil {
		return fmt.Errorf("add validation: %w", err)
	}
	return nil
}

// ValidationsForResult lists verdicts on a result ordered by annotator.
func (s *Store) ValidationsForResult(ctx context.Context, resultID int64) ([]AnnotationResultValidation, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `
		SELECT id, result_id, annotator_id, is_valid
		FROM annotation_result_validations WHERE result_id = ? ORDER BY annotator_id`, resultID)
	if err != nil {
		return nil, fmt.Errorf("validations for result: %w", err)
	}
	defer rows.Close()

	var validations []AnnotationResultValidation
	for rows.Next() {
		var (
			v     AnnotationResultValidation
			valid sql.NullInt64
		)
		if err := rows.Scan(&v.ID, &v.ResultID, &v.AnnotatorID, &valid); err != nil {
			return nil, err
		}
		v.IsValid = boolPtr(valid)
		validations = append(validations, v)
	}
	return validations, rows.Err()
}

// SessionsForTask lists recorded annotation sessions oldest first.
func (s *Store) SessionsForTask(ctx context.Context, taskID int64) ([]AnnotationSession, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `
		SELECT id, annotation_task_id, start, "end", session_output
		FROM annotation_sessions WHERE annotation_task_id = ? ORDER BY start, id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("sessions for task: %w", err)
	}
	defer rows.Close()

	var sessions []AnnotationSession
	for rows.Next() {
		var (
			session    AnnotationSession
			start, end string
		)
		if err := rows.Scan(&session.ID, &session.TaskID, &start, &end, &session.SessionOutput); err != nil {
			return nil, err
		}
		if t, err := parseTimeString(start); err == nil {
			session.Start = t
		}
		if t, err := parseTimeString(end); err == nil {
			session.End = t
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}
