package api_test

import (
	"context"
	"errors"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"

	"aplose/internal/api"
	"aplose/internal/logging"
	"aplose/internal/store"
	"aplose/internal/testsupport"
	"aplose/internal/validation"
)

func newTaskService(t *testing.T, opts ...testsupport.SeedOption) (*api.TaskService, *store.Store, *testsupport.CampaignFixture) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	fx := testsupport.SeedCampaign(t, st, opts...)
	return api.NewTaskService(st, cfg.Server.StaticURL, logging.NewNop()), st, fx
}

func strPtr(s string) *string { return &s }

func TestRetrieveBuildsWorkspacePayload(t *testing.T) {
	svc, _, fx := newTaskService(t)

	got, err := svc.Retrieve(context.Background(), fx.Tasks[0].ID, fx.Annotator.ID)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}

	root := "/backend/static/datawork/dataset/spm_aural_a_2010"
	want := &api.TaskRetrieve{
		CampaignID:     fx.Campaign.ID,
		CampaignUsage:  "Create",
		AnnotationTags: []string{"Boat", "Mysticetes", "Odoncetes", "Other", "Rain"},
		Boundaries: api.TaskBoundaries{
			StartTime:      strPtr("2012-10-03T10:00:00Z"),
			EndTime:        strPtr("2012-10-03T10:15:00Z"),
			StartFrequency: 0,
			EndFrequency:   16,
		},
		AudioURL:  root + "/audio/50h_0.wav",
		AudioRate: 32,
		SpectroURLs: []api.SpectroURLs{{
			NFFT:    4096,
			WinSize: 4096,
			Overlap: 90,
			URLs: []string{
				root + "/spectrograms/4096_4096_90/50h_0/50h_0_1_0.png",
				root + "/spectrograms/4096_4096_90/50h_0/50h_0_2_0.png",
				root + "/spectrograms/4096_4096_90/50h_0/50h_0_2_1.png",
			},
		}},
		PrevAnnotations: []api.PrevAnnotation{},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Retrieve mismatch (-want +got):\n%s", diff)
	}
}

func TestRetrievePrefersFileSampleRate(t *testing.T) {
	svc, st, fx := newTaskService(t)
	ctx := context.Background()

	rate := 128.0
	audio, err := st.CreateAudioMetadatum(ctx, store.AudioMetadatum{SampleRateKHz: &rate})
	if err != nil {
		t.Fatalf("CreateAudioMetadatum failed: %v", err)
	}
	file, err := st.CreateDatasetFile(ctx, store.DatasetFile{DatasetID: fx.Dataset.ID, Filename: "hf.wav", Filepath: "hf.wav", AudioMetadatumID: &audio.ID})
	if err != nil {
		t.Fatalf("CreateDatasetFile failed: %v", err)
	}
	task, err := st.CreateTask(ctx, store.AnnotationTask{CampaignID: fx.Campaign.ID, AnnotatorID: fx.Annotator.ID, DatasetFileID: file.ID})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	got, err := svc.Retrieve(ctx, task.ID, fx.Annotator.ID)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if got.AudioRate != 128 || got.Boundaries.EndFrequency != 64 {
		t.Fatalf("expected file rate, got %v / %v", got.AudioRate, got.Boundaries.EndFrequency)
	}
	if got.Boundaries.StartTime != nil {
		t.Fatalf("expected null start time, got %q", *got.Boundaries.StartTime)
	}
}

func TestRetrieveMissingTask(t *testing.T) {
	svc, _, fx := newTaskService(t)
	if _, err := svc.Retrieve(context.Background(), 9999, fx.Annotator.ID); !errors.Is(err, api.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCampaignTasks(t *testing.T) {
	svc, _, fx := newTaskService(t)
	ctx := context.Background()

	tasks, err := svc.CampaignTasks(ctx, fx.Campaign.ID, fx.Annotator.ID)
	if err != nil {
		t.Fatalf("CampaignTasks failed: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}
	want := api.TaskSummary{
		ID:          fx.Tasks[0].ID,
		Status:      0,
		Filename:    "sound000.wav",
		DatasetName: "SPM Aural A 2010",
		Start:       strPtr("2012-10-03T10:00:00Z"),
		End:         strPtr("2012-10-03T10:15:00Z"),
	}
	if diff := cmp.Diff(want, tasks[0]); diff != "" {
		t.Fatalf("task summary mismatch (-want +got):\n%s", diff)
	}

	if _, err := svc.CampaignTasks(ctx, 9999, fx.Annotator.ID); !errors.Is(err, api.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	other, err := svc.CampaignTasks(ctx, fx.Campaign.ID, 9999)
	if err != nil || len(other) != 0 {
		t.Fatalf("expected empty list for stranger, got %v (%v)", other, err)
	}
}

func box(label string, start, end, low, high float64) api.SubmitAnnotation {
	return api.SubmitAnnotation{
		Annotation:     label,
		StartTime:      testsupport.Float(start),
		EndTime:        testsupport.Float(end),
		StartFrequency: testsupport.Float(low),
		EndFrequency:   testsupport.Float(high),
	}
}

func submitRequest(annotations ...api.SubmitAnnotation) api.SubmitRequest {
	if annotations == nil {
		annotations = []api.SubmitAnnotation{}
	}
	return api.SubmitRequest{Annotations: annotations, TaskStartTime: 1700000000, TaskEndTime: 1700000060}
}

func TestSubmitWalksThroughCampaign(t *testing.T) {
	svc, st, fx := newTaskService(t)
	ctx := context.Background()

	resp, err := svc.Submit(ctx, fx.Tasks[0].ID, fx.Annotator.ID, submitRequest(box("Boat", 1, 3, 100, 2000)))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if resp.NextTask == nil || *resp.NextTask != fx.Tasks[1].ID || resp.CampaignID != nil {
		t.Fatalf("expected next task %d, got %#v", fx.Tasks[1].ID, resp)
	}

	payload, err := svc.Retrieve(ctx, fx.Tasks[0].ID, fx.Annotator.ID)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(payload.PrevAnnotations) != 1 || payload.PrevAnnotations[0].Annotation != "Boat" {
		t.Fatalf("expected submitted box in prevAnnotations, got %#v", payload.PrevAnnotations)
	}
	if *payload.PrevAnnotations[0].EndFrequency != 2000 {
		t.Fatalf("unexpected end frequency %v", *payload.PrevAnnotations[0].EndFrequency)
	}

	for _, task := range fx.Tasks[1:] {
		resp, err = svc.Submit(ctx, task.ID, fx.Annotator.ID, submitRequest())
		if err != nil {
			t.Fatalf("Submit(%d) failed: %v", task.ID, err)
		}
	}
	if resp.NextTask != nil || resp.CampaignID == nil || *resp.CampaignID != fx.Campaign.ID {
		t.Fatalf("expected campaign pointer once done, got %#v", resp)
	}

	sessions, err := st.SessionsForTask(ctx, fx.Tasks[0].ID)
	if err != nil || len(sessions) != 1 {
		t.Fatalf("expected one session, got %#v (%v)", sessions, err)
	}
	if sessions[0].Start.Unix() != 1700000000 || sessions[0].End.Unix() != 1700000060 {
		t.Fatalf("unexpected session bounds %v - %v", sessions[0].Start, sessions[0].End)
	}
}

func TestSubmitRejectsOtherAnnotator(t *testing.T) {
	svc, _, fx := newTaskService(t)
	_, err := svc.Submit(context.Background(), fx.Tasks[0].ID, fx.Reviewer.ID, submitRequest())
	if !errors.Is(err, api.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSubmitValidation(t *testing.T) {
	svc, _, fx := newTaskService(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		req   api.SubmitRequest
		field string
	}{
		{
			name:  "unknown label",
			req:   submitRequest(box("Dolphin", 0, 1, 0, 1)),
			field: "annotations[0].annotation",
		},
		{
			name:  "end before start",
			req:   submitRequest(box("Boat", 5, 2, 0, 1)),
			field: "annotations[0].endTime",
		},
		{
			name:  "missing start time",
			req:   submitRequest(api.SubmitAnnotation{Annotation: "Boat", EndTime: testsupport.Float(2), StartFrequency: testsupport.Float(0), EndFrequency: testsupport.Float(1)}),
			field: "annotations[0].startTime",
		},
		{
			name:  "missing end frequency",
			req:   submitRequest(api.SubmitAnnotation{Annotation: "Boat", StartTime: testsupport.Float(0), EndTime: testsupport.Float(2), StartFrequency: testsupport.Float(0)}),
			field: "annotations[0].endFrequency",
		},
		{
			name:  "missing times",
			req:   api.SubmitRequest{Annotations: []api.SubmitAnnotation{}},
			field: "task_start_time",
		},
		{
			name:  "missing annotations",
			req:   api.SubmitRequest{TaskStartTime: 1, TaskEndTime: 2},
			field: "annotations",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Submit(ctx, fx.Tasks[0].ID, fx.Annotator.ID, tc.req)
			ve, ok := validation.AsRequestError(err)
			if !ok {
				t.Fatalf("expected validation error, got %v", err)
			}
			found := false
			for _, f := range ve.Fields() {
				if f.Field == tc.field {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected failure on %s, got %#v", tc.field, ve.Fields())
			}
		})
	}
}

func TestSubmitMatchesLabelsInNFC(t *testing.T) {
	svc, _, fx := newTaskService(t, testsupport.WithTags("Baleine \u00e0 bosse"))

	decomposed := "Baleine a\u0300 bosse"
	_, err := svc.Submit(context.Background(), fx.Tasks[0].ID, fx.Annotator.ID,
		submitRequest(box(decomposed, 0, 1, 0, 1)))
	if err != nil {
		t.Fatalf("decomposed label should match composed tag: %v", err)
	}
}

func TestCheckCampaignShowsOthersResultsWithValidation(t *testing.T) {
	svc, st, fx := newTaskService(t, testsupport.WithUsage(store.UsageCheck))
	ctx := context.Background()

	detector, err := st.EnsureDetector(ctx, "boat-detector")
	if err != nil {
		t.Fatalf("EnsureDetector failed: %v", err)
	}
	dc, err := st.CreateDetectorConfiguration(ctx, detector.ID, "")
	if err != nil {
		t.Fatalf("CreateDetectorConfiguration failed: %v", err)
	}
	if _, err := st.InsertDetectorResults(ctx, fx.Campaign.ID, dc.ID, []store.DetectorResultInput{
		{DatasetFileID: fx.Files[0].ID, TagID: fx.TagID(t, "Boat"), StartTime: testsupport.Float(2)},
	}); err != nil {
		t.Fatalf("InsertDetectorResults failed: %v", err)
	}

	payload, err := svc.Retrieve(ctx, fx.Tasks[0].ID, fx.Annotator.ID)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if payload.CampaignUsage != "Check" || len(payload.PrevAnnotations) != 1 {
		t.Fatalf("unexpected payload %#v", payload)
	}
	prev := payload.PrevAnnotations[0]
	if prev.Validation == nil || prev.Validation.IsValid != nil {
		t.Fatalf("expected an unset verdict, got %+v", prev.Validation)
	}

	req := submitRequest()
	req.Validations = []api.SubmitValidation{{ResultID: prev.ID, IsValid: testsupport.Bool(false)}}
	if _, err := svc.Submit(ctx, fx.Tasks[0].ID, fx.Annotator.ID, req); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	payload, err = svc.Retrieve(ctx, fx.Tasks[0].ID, fx.Annotator.ID)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if v := payload.PrevAnnotations[0].Validation; v == nil || v.IsValid == nil || *v.IsValid {
		t.Fatalf("expected validation false, got %+v", v)
	}

	req.Validations = []api.SubmitValidation{{ResultID: 9999, IsValid: testsupport.Bool(true)}}
	if _, err := svc.Submit(ctx, fx.Tasks[0].ID, fx.Annotator.ID, req); err == nil {
		t.Fatal("expected validation of unknown result to fail")
	} else if _, ok := validation.AsRequestError(err); !ok {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSubmitStoresZeroCoordinates(t *testing.T) {
	svc, st, fx := newTaskService(t)
	ctx := context.Background()

	if _, err := svc.Submit(ctx, fx.Tasks[0].ID, fx.Annotator.ID, submitRequest(box("Boat", 0, 0, 0, 0))); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	results, err := st.ResultsForTask(ctx, fx.Campaign.ID, fx.Files[0].ID, fx.Annotator.ID)
	if err != nil || len(results) != 1 {
		t.Fatalf("expected one stored result, got %#v (%v)", results, err)
	}
	if results[0].StartTime == nil || *results[0].StartTime != 0 || results[0].EndFrequency == nil {
		t.Fatalf("expected explicit zero coordinates, got %#v", results[0])
	}
}

func TestPrevAnnotationValidationEncoding(t *testing.T) {
	valid := true
	cases := []struct {
		name string
		prev api.PrevAnnotation
		want string
	}{
		{name: "create omits key", prev: api.PrevAnnotation{ID: 1, Annotation: "Boat"}, want: ""},
		{name: "check unset", prev: api.PrevAnnotation{ID: 1, Annotation: "Boat", Validation: &api.Verdict{}}, want: "null"},
		{name: "check valid", prev: api.PrevAnnotation{ID: 1, Annotation: "Boat", Validation: &api.Verdict{IsValid: &valid}}, want: "true"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(tc.prev)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			var fields map[string]json.RawMessage
			if err := json.Unmarshal(data, &fields); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			raw, ok := fields["validation"]
			if tc.want == "" {
				if ok {
					t.Fatalf("expected no validation key in %s", data)
				}
				return
			}
			if !ok || string(raw) != tc.want {
				t.Fatalf("validation = %s, want %s (payload %s)", raw, tc.want, data)
			}
		})
	}
}
