package api

import (
	"time"

	"aplose/internal/spectro"
	"aplose/internal/store"
)

const newsDateFormat = "2006-01-02"

func formatTime(value *time.Time) *string {
	if value == nil {
		return nil
	}
	s := value.UTC().Format(time.RFC3339Nano)
	return &s
}

// FromTaskSummaries converts store rows to the task list payload.
func FromTaskSummaries(tasks []store.TaskSummary) []TaskSummary {
	out := make([]TaskSummary, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, TaskSummary{
			ID:          task.ID,
			Status:      int(task.Status),
			Filename:    task.Filename,
			DatasetName: task.DatasetName,
			Start:       formatTime(task.Start),
			End:         formatTime(task.End),
		})
	}
	return out
}

// AudioRate prefers the file's own sample rate and falls back to the
// dataset's when the file has none or zero.
func AudioRate(tc *store.TaskContext) float64 {
	if rate := tc.FileAudio.SampleRateKHz; rate != nil && *rate != 0 {
		return *rate
	}
	if rate := tc.DatasetAudio.SampleRateKHz; rate != nil {
		return *rate
	}
	return 0
}

func spectroURLs(rootURL, soundName string, configs []store.SpectroConfig) []SpectroURLs {
	out := make([]SpectroURLs, 0, len(configs))
	for _, cfg := range configs {
		out = append(out, SpectroURLs{
			NFFT:    cfg.NFFT,
			WinSize: cfg.WindowSize,
			Overlap: cfg.Overlap,
			URLs:    spectro.TileURLs(rootURL, cfg.Name, soundName, cfg.ZoomLevel),
		})
	}
	return out
}

func fromResult(result store.AnnotationResult) PrevAnnotation {
	return PrevAnnotation{
		ID:             result.ID,
		Annotation:     result.TagName,
		StartTime:      result.StartTime,
		EndTime:        result.EndTime,
		StartFrequency: result.StartFrequency,
		EndFrequency:   result.EndFrequency,
	}
}

// FromNews converts an article to its API representation.
func FromNews(news *store.News) NewsItem {
	if news == nil {
		return NewsItem{}
	}
	item := NewsItem{
		ID:       news.ID,
		Title:    news.Title,
		Intro:    news.Intro,
		Body:     news.Body,
		Vignette: news.Vignette,
	}
	if news.Date != nil {
		d := news.Date.UTC().Format(newsDateFormat)
		item.Date = &d
	}
	return item
}
