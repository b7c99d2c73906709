package api

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"aplose/internal/store"
)

func ratePtr(v float64) *float64 { return &v }

func TestAudioRate(t *testing.T) {
	tests := []struct {
		name    string
		file    *float64
		dataset *float64
		want    float64
	}{
		{"file rate wins", ratePtr(64), ratePtr(32), 64},
		{"zero file rate falls back", ratePtr(0), ratePtr(32), 32},
		{"missing file rate falls back", nil, ratePtr(32), 32},
		{"no rate at all", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := &store.TaskContext{
				FileAudio:    store.AudioMetadatum{SampleRateKHz: tt.file},
				DatasetAudio: store.AudioMetadatum{SampleRateKHz: tt.dataset},
			}
			if got := AudioRate(tc); got != tt.want {
				t.Fatalf("AudioRate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSpectroURLsPerConfig(t *testing.T) {
	configs := []store.SpectroConfig{
		{ID: 1, Name: "4096_4096_90", NFFT: 4096, WindowSize: 4096, Overlap: 90, ZoomLevel: 0},
		{ID: 3, Name: "2048_1000_0", NFFT: 2048, WindowSize: 1000, Overlap: 0, ZoomLevel: 1},
	}
	got := spectroURLs("/static/ds", "sound", configs)
	want := []SpectroURLs{
		{NFFT: 4096, WinSize: 4096, Overlap: 90, URLs: []string{
			"/static/ds/spectrograms/4096_4096_90/sound/sound_1_0.png",
		}},
		{NFFT: 2048, WinSize: 1000, Overlap: 0, URLs: []string{
			"/static/ds/spectrograms/2048_1000_0/sound/sound_1_0.png",
			"/static/ds/spectrograms/2048_1000_0/sound/sound_2_0.png",
			"/static/ds/spectrograms/2048_1000_0/sound/sound_2_1.png",
		}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("spectro urls mismatch (-want +got):\n%s", diff)
	}
}

func TestFromTaskSummariesFormatsTimes(t *testing.T) {
	start := time.Date(2012, time.October, 3, 10, 0, 0, 0, time.UTC)
	got := FromTaskSummaries([]store.TaskSummary{
		{ID: 7, Status: store.TaskFinished, Filename: "a.wav", DatasetName: "ds", Start: &start},
	})
	if len(got) != 1 || got[0].Status != 2 {
		t.Fatalf("unexpected summaries %+v", got)
	}
	if got[0].Start == nil || *got[0].Start != "2012-10-03T10:00:00Z" {
		t.Fatalf("unexpected start %v", got[0].Start)
	}
	if got[0].End != nil {
		t.Fatalf("expected nil end, got %v", *got[0].End)
	}
}

func TestFromNews(t *testing.T) {
	date := time.Date(2023, time.May, 4, 0, 0, 0, 0, time.UTC)
	got := FromNews(&store.News{ID: 3, Title: "T", Date: &date})
	if got.Date == nil || *got.Date != "2023-05-04" {
		t.Fatalf("unexpected date %v", got.Date)
	}
	if empty := FromNews(nil); empty.ID != 0 {
		t.Fatalf("expected zero item, got %+v", empty)
	}
}
