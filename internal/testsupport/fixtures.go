package testsupport

import (
	"context"
	"fmt"
	"testing"
	"time"

	"aplose/internal/store"
)

// DefaultTags are seeded into fixture annotation sets.
var DefaultTags = []string{"Mysticetes", "Odoncetes", "Boat", "Rain", "Other"}

// FixtureStart is the audio start of the first fixture file.
var FixtureStart = time.Date(2012, time.October, 3, 10, 0, 0, 0, time.UTC)

// CampaignFixture bundles the rows created by SeedCampaign.
type CampaignFixture struct {
	Annotator *store.User
	Reviewer  *store.User
	Dataset   *store.Dataset
	Files     []store.DatasetFile
	Configs   []store.SpectroConfig
	Set       *store.AnnotationSet
	Tags      []store.AnnotationTag
	Campaign  *store.AnnotationCampaign
	// Tasks holds the annotator's tasks in file order.
	Tasks []store.AnnotationTask
	// ReviewerTask is the reviewer's task on the first file.
	ReviewerTask store.AnnotationTask
}

type seedOptions struct {
	usage     store.CampaignUsage
	fileCount int
	zoomLevel int
	tags      []string
}

// SeedOption adjusts SeedCampaign.
type SeedOption func(*seedOptions)

func WithUsage(usage store.CampaignUsage) SeedOption {
	return func(o *seedOptions) { o.usage = usage }
}

func WithFileCount(n int) SeedOption {
	return func(o *seedOptions) { o.fileCount = n }
}

func WithZoomLevel(level int) SeedOption {
	return func(o *seedOptions) { o.zoomLevel = level }
}

func WithTags(tags ...string) SeedOption {
	return func(o *seedOptions) { o.tags = tags }
}

// SeedCampaign creates a dataset of 15 minute files sampled at 32 kHz, three
// spectrogram configurations (the first shared by dataset and campaign, the
// second dataset-only, the third campaign-only), an annotation set and a
// campaign with one task per file for "annotator" and one task on the first
// file for "reviewer".
func SeedCampaign(t testing.TB, st *store.Store, opts ...SeedOption) *CampaignFixture {
	t.Helper()

	options := seedOptions{fileCount: 3, zoomLevel: 1, tags: DefaultTags}
	for _, opt := range opts {
		opt(&options)
	}

	ctx := context.Background()
	must := func(err error, what string) {
		t.Helper()
		if err != nil {
			t.Fatalf("seed %s: %v", what, err)
		}
	}

	fx := &CampaignFixture{}
	fx.Annotator = MustCreateUser(t, st, "annotator")
	fx.Reviewer = MustCreateUser(t, st, "reviewer")

	rate := 32.0
	datasetStart := FixtureStart
	datasetEnd := FixtureStart.Add(time.Duration(options.fileCount) * time.Hour)
	datasetAudio, err := st.CreateAudioMetadatum(ctx, store.AudioMetadatum{Start: &datasetStart, End: &datasetEnd, SampleRateKHz: &rate})
	must(err, "dataset audio")

	fx.Dataset, err = st.CreateDataset(ctx, store.Dataset{
		Name:             "SPM Aural A 2010",
		DatasetPath:      "datawork/dataset/spm_aural_a_2010",
		AudioMetadatumID: &datasetAudio.ID,
	})
	must(err, "dataset")

	for i := 0; i < options.fileCount; i++ {
		start := FixtureStart.Add(time.Duration(i) * time.Hour)
		end := start.Add(15 * time.Minute)
		audio, err := st.CreateAudioMetadatum(ctx, store.AudioMetadatum{Start: &start, End: &end})
		must(err, "file audio")
		file, err := st.CreateDatasetFile(ctx, store.DatasetFile{
			DatasetID:        fx.Dataset.ID,
			Filename:         fmt.Sprintf("sound%03d.wav", i),
			Filepath:         fmt.Sprintf("audio/50h_%d.wav", i),
			Size:             58982478,
			AudioMetadatumID: &audio.ID,
		})
		must(err, "dataset file")
		fx.Files = append(fx.Files, *file)
	}

	for i, spec := range []store.SpectroConfig{
		{Name: "4096_4096_90", NFFT: 4096, WindowSize: 4096, Overlap: 90, ZoomLevel: options.zoomLevel},
		{Name: "1024_1024_50", NFFT: 1024, WindowSize: 1024, Overlap: 50, ZoomLevel: options.zoomLevel},
		{Name: "2048_1000_0", NFFT: 2048, WindowSize: 1000, Overlap: 0, ZoomLevel: options.zoomLevel},
	} {
		cfg, err := st.CreateSpectroConfig(ctx, spec)
		must(err, "spectro config")
		fx.Configs = append(fx.Configs, *cfg)
		if i < 2 {
			must(st.AttachDatasetSpectroConfig(ctx, fx.Dataset.ID, cfg.ID), "dataset spectro config")
		}
	}

	fx.Set, err = st.CreateAnnotationSet(ctx, "Test SPM campaign", "Annotation set made for SPM")
	must(err, "annotation set")
	for _, name := range options.tags {
		tag, err := st.AddAnnotationTag(ctx, fx.Set.ID, name)
		must(err, "annotation tag")
		fx.Tags = append(fx.Tags, *tag)
	}

	fx.Campaign, err = st.CreateCampaign(ctx, store.AnnotationCampaign{
		Name:            "Test SPM campaign",
		Description:     "Test annotation campaign",
		InstructionsURL: "https://example.org/instructions",
		AnnotationSetID: fx.Set.ID,
		OwnerID:         &fx.Annotator.ID,
		Usage:           options.usage,
	})
	must(err, "campaign")
	must(st.AttachCampaignSpectroConfig(ctx, fx.Campaign.ID, fx.Configs[0].ID), "campaign spectro config")
	must(st.AttachCampaignSpectroConfig(ctx, fx.Campaign.ID, fx.Configs[2].ID), "campaign spectro config")

	for _, file := range fx.Files {
		task, err := st.CreateTask(ctx, store.AnnotationTask{
			CampaignID:    fx.Campaign.ID,
			AnnotatorID:   fx.Annotator.ID,
			DatasetFileID: file.ID,
		})
		must(err, "task")
		fx.Tasks = append(fx.Tasks, *task)
	}
	if len(fx.Files) > 0 {
		task, err := st.CreateTask(ctx, store.AnnotationTask{
			CampaignID:    fx.Campaign.ID,
			AnnotatorID:   fx.Reviewer.ID,
			DatasetFileID: fx.Files[0].ID,
		})
		must(err, "reviewer task")
		fx.ReviewerTask = *task
	}
	return fx
}

// TagID returns the id of the fixture tag called name.
func (fx *CampaignFixture) TagID(t testing.TB, name string) int64 {
	t.Helper()
	for _, tag := range fx.Tags {
		if tag.Name == name {
			return tag.ID
		}
	}
	t.Fatalf("fixture tag %q not found", name)
	return 0
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// Bool returns a pointer to v.
func Bool(v bool) *bool {
	return &v
}
