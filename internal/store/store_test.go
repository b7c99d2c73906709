package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"aplose/internal/store"
	"aplose/internal/testsupport"
)

func TestOpenAppliesMigrations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	states, err := st.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("MigrationStatus failed: %v", err)
	}
	if len(states) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(states))
	}
	for _, state := range states {
		if !state.Applied {
			t.Fatalf("migration %s not applied", state.Version)
		}
	}

	health, err := st.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !health.Healthy() {
		t.Fatalf("expected healthy database, got %#v", health)
	}
	if health.SchemaVersion != store.MigrationDoubleCheck {
		t.Fatalf("unexpected schema version %q", health.SchemaVersion)
	}
}

func TestUserByToken(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	created, err := st.CreateUser(ctx, "alice", "")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if created.Token == "" {
		t.Fatal("expected generated token")
	}
	found, err := st.UserByToken(ctx, created.Token)
	if err != nil {
		t.Fatalf("UserByToken failed: %v", err)
	}
	if found == nil || found.ID != created.ID {
		t.Fatalf("unexpected user %#v", found)
	}
	missing, err := st.UserByToken(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil user, got %#v (%v)", missing, err)
	}
}

func TestTaskContextJoinsCampaignFileAndDataset(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	fx := testsupport.SeedCampaign(t, st)

	tc, err := st.TaskContext(context.Background(), fx.Tasks[1].ID)
	if err != nil {
		t.Fatalf("TaskContext failed: %v", err)
	}
	if tc == nil {
		t.Fatal("expected task context")
	}
	if tc.Campaign.ID != fx.Campaign.ID || tc.Campaign.Usage != store.UsageCreate {
		t.Fatalf("unexpected campaign %#v", tc.Campaign)
	}
	if tc.File.Filepath != "audio/50h_1.wav" || tc.Dataset.DatasetPath != fx.Dataset.DatasetPath {
		t.Fatalf("unexpected file/dataset %#v %#v", tc.File, tc.Dataset)
	}
	wantStart := testsupport.FixtureStart.Add(time.Hour)
	if tc.FileAudio.Start == nil || !tc.FileAudio.Start.Equal(wantStart) {
		t.Fatalf("unexpected file start %v", tc.FileAudio.Start)
	}
	if tc.FileAudio.SampleRateKHz != nil {
		t.Fatalf("expected no file sample rate, got %v", *tc.FileAudio.SampleRateKHz)
	}
	if tc.DatasetAudio.SampleRateKHz == nil || *tc.DatasetAudio.SampleRateKHz != 32 {
		t.Fatalf("unexpected dataset sample rate %v", tc.DatasetAudio.SampleRateKHz)
	}

	missing, err := st.TaskContext(context.Background(), 9999)
	if err != nil || missing != nil {
		t.Fatalf("expected nil context for missing task, got %#v (%v)", missing, err)
	}
}

func TestTasksForAnnotatorOrdersByAudioStart(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	fx := testsupport.SeedCampaign(t, st, testsupport.WithFileCount(2))
	ctx := context.Background()

	early := testsupport.FixtureStart.Add(-24 * time.Hour)
	audio, err := st.CreateAudioMetadatum(ctx, store.AudioMetadatum{Start: &early})
	if err != nil {
		t.Fatalf("CreateAudioMetadatum failed: %v", err)
	}
	file, err := st.CreateDatasetFile(ctx, store.DatasetFile{
		DatasetID: fx.Dataset.ID, Filename: "early.wav", Filepath: "audio/early.wav", AudioMetadatumID: &audio.ID,
	})
	if err != nil {
		t.Fatalf("CreateDatasetFile failed: %v", err)
	}
	undated, err := st.CreateDatasetFile(ctx, store.DatasetFile{
		DatasetID: fx.Dataset.ID, Filename: "undated.wav", Filepath: "audio/undated.wav",
	})
	if err != nil {
		t.Fatalf("CreateDatasetFile failed: %v", err)
	}
	for _, f := range []*store.DatasetFile{undated, file} {
		if _, err := st.CreateTask(ctx, store.AnnotationTask{CampaignID: fx.Campaign.ID, AnnotatorID: fx.Annotator.ID, DatasetFileID: f.ID}); err != nil {
			t.Fatalf("CreateTask failed: %v", err)
		}
	}

	tasks, err := st.TasksForAnnotator(ctx, fx.Campaign.ID, fx.Annotator.ID)
	if err != nil {
		t.Fatalf("TasksForAnnotator failed: %v", err)
	}
	var names []string
	for _, task := range tasks {
		names = append(names, task.Filename)
	}
	want := []string{"early.wav", "sound000.wav", "sound001.wav", "undated.wav"}
	if len(names) != len(want) {
		t.Fatalf("unexpected tasks %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("position %d: want %s, got %v", i, want[i], names)
		}
	}
	if tasks[0].DatasetName != fx.Dataset.Name {
		t.Fatalf("unexpected dataset name %q", tasks[0].DatasetName)
	}

	next, err := st.NextPendingTask(ctx, fx.Campaign.ID, fx.Annotator.ID)
	if err != nil {
		t.Fatalf("NextPendingTask failed: %v", err)
	}
	if next == nil || *next != tasks[0].ID {
		t.Fatalf("expected next task %d, got %v", tasks[0].ID, next)
	}
}

func TestCommonSpectroConfigsIntersectsDatasetAndCampaign(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	fx := testsupport.SeedCampaign(t, st)

	configs, err := st.CommonSpectroConfigs(context.Background(), fx.Dataset.ID, fx.Campaign.ID)
	if err != nil {
		t.Fatalf("CommonSpectroConfigs failed: %v", err)
	}
	if len(configs) != 1 || configs[0].ID != fx.Configs[0].ID {
		t.Fatalf("expected only the shared config, got %#v", configs)
	}
}

func TestCampaignTagNamesSorted(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	fx := testsupport.SeedCampaign(t, st)

	names, err := st.CampaignTagNames(context.Background(), fx.Campaign.ID)
	if err != nil {
		t.Fatalf("CampaignTagNames failed: %v", err)
	}
	want := []string{"Boat", "Mysticetes", "Odoncetes", "Other", "Rain"}
	if len(names) != len(want) {
		t.Fatalf("unexpected names %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("unexpected order %v", names)
		}
	}
}

func TestSubmitTaskReplacesPreviousResults(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	fx := testsupport.SeedCampaign(t, st)
	ctx := context.Background()
	task := fx.Tasks[0]
	now := time.Now().UTC()

	first := store.SubmitInput{
		TaskID:      task.ID,
		AnnotatorID: fx.Annotator.ID,
		Results: []store.ResultInput{
			{TagID: fx.TagID(t, "Boat"), StartTime: testsupport.Float(1), EndTime: testsupport.Float(2), StartFrequency: testsupport.Float(10), EndFrequency: testsupport.Float(100)},
			{TagID: fx.TagID(t, "Rain")},
		},
		SessionStart:  now.Add(-time.Minute),
		SessionEnd:    now,
		SessionOutput: `{"annotations":[]}`,
	}
	created, err := st.SubmitTask(ctx, first)
	if err != nil {
		t.Fatalf("SubmitTask failed: %v", err)
	}
	if created != 2 {
		t.Fatalf("expected 2 results, got %d", created)
	}

	second := first
	second.Results = []store.ResultInput{{TagID: fx.TagID(t, "Mysticetes"), StartTime: testsupport.Float(5)}}
	if _, err := st.SubmitTask(ctx, second); err != nil {
		t.Fatalf("second SubmitTask failed: %v", err)
	}

	results, err := st.ResultsForTask(ctx, fx.Campaign.ID, task.DatasetFileID, fx.Annotator.ID)
	if err != nil {
		t.Fatalf("ResultsForTask failed: %v", err)
	}
	if len(results) != 1 || results[0].TagName != "Mysticetes" {
		t.Fatalf("expected replaced results, got %#v", results)
	}
	if results[0].AnnotatorID == nil || *results[0].AnnotatorID != fx.Annotator.ID || results[0].DetectorConfigurationID != nil {
		t.Fatalf("unexpected authorship %#v", results[0])
	}

	updated, err := st.TaskByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("TaskByID failed: %v", err)
	}
	if updated.Status != store.TaskFinished {
		t.Fatalf("expected finished status, got %v", updated.Status)
	}
	sessions, err := st.SessionsForTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("SessionsForTask failed: %v", err)
	}
	if len(sessions) != 2 || sessions[0].SessionOutput != first.SessionOutput {
		t.Fatalf("unexpected sessions %#v", sessions)
	}
}

func TestSubmitTaskRejectsValidationOfOtherFile(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	fx := testsupport.SeedCampaign(t, st, testsupport.WithUsage(store.UsageCheck))
	ctx := context.Background()

	detector, err := st.EnsureDetector(ctx, "whistle-detector")
	if err != nil {
		t.Fatalf("EnsureDetector failed: %v", err)
	}
	dc, err := st.CreateDetectorConfiguration(ctx, detector.ID, "threshold=0.5")
	if err != nil {
		t.Fatalf("CreateDetectorConfiguration failed: %v", err)
	}
	if _, err := st.InsertDetectorResults(ctx, fx.Campaign.ID, dc.ID, []store.DetectorResultInput{
		{DatasetFileID: fx.Files[1].ID, TagID: fx.TagID(t, "Boat")},
	}); err != nil {
		t.Fatalf("InsertDetectorResults failed: %v", err)
	}
	foreign, err := st.ResultsForCheck(ctx, fx.Campaign.ID, fx.Files[1].ID, fx.Annotator.ID)
	if err != nil || len(foreign) != 1 {
		t.Fatalf("expected one detector result, got %#v (%v)", foreign, err)
	}

	_, err = st.SubmitTask(ctx, store.SubmitInput{
		TaskID:       fx.Tasks[0].ID,
		AnnotatorID:  fx.Annotator.ID,
		Validations:  []store.ValidationInput{{ResultID: foreign[0].ID, IsValid: testsupport.Bool(true)}},
		SessionStart: time.Now(),
		SessionEnd:   time.Now(),
	})
	if !errors.Is(err, store.ErrResultMismatch) {
		t.Fatalf("expected ErrResultMismatch, got %v", err)
	}

	task, err := st.TaskByID(ctx, fx.Tasks[0].ID)
	if err != nil {
		t.Fatalf("TaskByID failed: %v", err)
	}
	if task.Status != store.TaskCreated {
		t.Fatalf("expected rollback to keep task created, got %v", task.Status)
	}
}

func TestResultsForCheckCarriesReviewerValidation(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	fx := testsupport.SeedCampaign(t, st, testsupport.WithUsage(store.UsageCheck))
	ctx := context.Background()
	file := fx.Files[0]

	detector, err := st.EnsureDetector(ctx, "boat-detector")
	if err != nil {
		t.Fatalf("EnsureDetector failed: %v", err)
	}
	dc, err := st.CreateDetectorConfiguration(ctx, detector.ID, "")
	if err != nil {
		t.Fatalf("CreateDetectorConfiguration failed: %v", err)
	}
	if _, err := st.InsertDetectorResults(ctx, fx.Campaign.ID, dc.ID, []store.DetectorResultInput{
		{DatasetFileID: file.ID, TagID: fx.TagID(t, "Boat"), StartTime: testsupport.Float(3)},
		{DatasetFileID: file.ID, TagID: fx.TagID(t, "Rain"), StartTime: testsupport.Float(4)},
	}); err != nil {
		t.Fatalf("InsertDetectorResults failed: %v", err)
	}
	if _, err := st.SubmitTask(ctx, store.SubmitInput{
		TaskID:       fx.ReviewerTask.ID,
		AnnotatorID:  fx.Reviewer.ID,
		Results:      []store.ResultInput{{TagID: fx.TagID(t, "Other")}},
		SessionStart: time.Now(),
		SessionEnd:   time.Now(),
	}); err != nil {
		t.Fatalf("reviewer SubmitTask failed: %v", err)
	}

	before, err := st.ResultsForCheck(ctx, fx.Campaign.ID, file.ID, fx.Annotator.ID)
	if err != nil {
		t.Fatalf("ResultsForCheck failed: %v", err)
	}
	if len(before) != 3 {
		t.Fatalf("expected detector and reviewer results, got %d", len(before))
	}
	if err := st.AddValidation(ctx, before[0].ID, fx.Annotator.ID, testsupport.Bool(false)); err != nil {
		t.Fatalf("AddValidation failed: %v", err)
	}
	if err := st.AddValidation(ctx, before[0].ID, fx.Annotator.ID, testsupport.Bool(true)); err != nil {
		t.Fatalf("AddValidation upsert failed: %v", err)
	}

	after, err := st.ResultsForCheck(ctx, fx.Campaign.ID, file.ID, fx.Annotator.ID)
	if err != nil {
		t.Fatalf("ResultsForCheck failed: %v", err)
	}
	if after[0].Validation == nil || !*after[0].Validation {
		t.Fatalf("expected validation true, got %v", after[0].Validation)
	}
	if after[1].Validation != nil {
		t.Fatalf("expected no validation, got %v", *after[1].Validation)
	}
	validations, err := st.ValidationsForResult(ctx, before[0].ID)
	if err != nil || len(validations) != 1 {
		t.Fatalf("expected a single upserted validation, got %#v (%v)", validations, err)
	}

	own, err := st.ResultsForCheck(ctx, fx.Campaign.ID, file.ID, fx.Reviewer.ID)
	if err != nil {
		t.Fatalf("ResultsForCheck failed: %v", err)
	}
	if len(own) != 2 {
		t.Fatalf("reviewer should not see own results, got %d", len(own))
	}
}

func TestConfidenceIndicatorLabelsUniquePerSet(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	a, err := st.CreateConfidenceIndicatorSet(ctx, "default")
	if err != nil {
		t.Fatalf("CreateConfidenceIndicatorSet failed: %v", err)
	}
	b, err := st.CreateConfidenceIndicatorSet(ctx, "strict")
	if err != nil {
		t.Fatalf("CreateConfidenceIndicatorSet failed: %v", err)
	}
	if _, err := st.AddConfidenceIndicator(ctx, store.ConfidenceIndicator{SetID: a.ID, Label: "sure", Level: 1}); err != nil {
		t.Fatalf("AddConfidenceIndicator failed: %v", err)
	}
	if _, err := st.AddConfidenceIndicator(ctx, store.ConfidenceIndicator{SetID: b.ID, Label: "sure", Level: 1}); err != nil {
		t.Fatalf("same label in another set should be accepted: %v", err)
	}
	if _, err := st.AddConfidenceIndicator(ctx, store.ConfidenceIndicator{SetID: a.ID, Label: "sure"}); err == nil {
		t.Fatal("expected duplicate label in the same set to fail")
	}
}

func TestStatsCountsTasksByStatus(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	fx := testsupport.SeedCampaign(t, st)
	ctx := context.Background()

	if err := st.SetTaskStatus(ctx, fx.Tasks[0].ID, store.TaskStarted); err != nil {
		t.Fatalf("SetTaskStatus failed: %v", err)
	}
	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[store.TaskStarted] != 1 || stats[store.TaskCreated] != 3 {
		t.Fatalf("unexpected stats %#v", stats)
	}
}

func TestParseCampaignUsage(t *testing.T) {
	tests := []struct {
		in      string
		want    store.CampaignUsage
		wantErr bool
	}{
		{in: "Create", want: store.UsageCreate},
		{in: " check ", want: store.UsageCheck},
		{in: "", want: store.UsageCreate},
		{in: "review", wantErr: true},
	}
	for _, tt := range tests {
		got, err := store.ParseCampaignUsage(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseCampaignUsage(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if !tt.wantErr && got != tt.want {
			t.Fatalf("ParseCampaignUsage(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCreateSpectroConfigRejectsZoomLevel(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	for _, level := range []int{-1, 17, 63} {
		if _, err := st.CreateSpectroConfig(ctx, store.SpectroConfig{Name: "cfg", NFFT: 512, WindowSize: 512, ZoomLevel: level}); err == nil {
			t.Fatalf("expected zoom level %d to be rejected", level)
		}
	}
	if _, err := st.CreateSpectroConfig(ctx, store.SpectroConfig{Name: "cfg", NFFT: 512, WindowSize: 512, ZoomLevel: 16}); err != nil {
		t.Fatalf("zoom level 16 should be accepted: %v", err)
	}
}

func TestImportDetectorResultsIsAtomic(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	fx := testsupport.SeedCampaign(t, st, testsupport.WithUsage(store.UsageCheck))
	ctx := context.Background()

	_, err := st.ImportDetectorResults(ctx, fx.Campaign.ID, "pamguard", "threshold=0.5", []store.DetectorResultInput{
		{DatasetFileID: fx.Files[0].ID, TagID: fx.TagID(t, "Boat")},
		{DatasetFileID: fx.Files[0].ID, TagID: 9999},
	})
	if err == nil {
		t.Fatal("expected unknown tag to fail the import")
	}
	detectors, err := st.ListDetectors(ctx)
	if err != nil {
		t.Fatalf("ListDetectors failed: %v", err)
	}
	if len(detectors) != 0 {
		t.Fatalf("expected detector insert rolled back, got %+v", detectors)
	}
	results, err := st.ResultsForCheck(ctx, fx.Campaign.ID, fx.Files[0].ID, fx.Annotator.ID)
	if err != nil || len(results) != 0 {
		t.Fatalf("expected no results, got %#v (%v)", results, err)
	}

	imported, err := st.ImportDetectorResults(ctx, fx.Campaign.ID, "pamguard", "threshold=0.5", []store.DetectorResultInput{
		{DatasetFileID: fx.Files[0].ID, TagID: fx.TagID(t, "Boat")},
	})
	if err != nil {
		t.Fatalf("ImportDetectorResults failed: %v", err)
	}
	configs, err := st.DetectorConfigurations(ctx, imported.DetectorID)
	if err != nil {
		t.Fatalf("DetectorConfigurations failed: %v", err)
	}
	if imported.Inserted != 1 || len(configs) != 1 || configs[0].ID != imported.ConfigurationID {
		t.Fatalf("unexpected import %+v with configurations %+v", imported, configs)
	}
}
