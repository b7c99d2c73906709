// Package api holds the annotation task and news workflows behind the HTTP
// layer and the wire-format types they return.
//
// # Key Types
//
// TaskRetrieve: everything the annotation front end needs to open a task:
// tag names, time/frequency boundaries, audio and spectrogram tile URLs and
// the annotations to display.
//
// SubmitRequest/SubmitResponse: a finished task and the pointer to the next
// one.
//
// NewsItem: a site announcement.
//
// # Design Notes
//
// Services depend on narrow reader/writer interfaces satisfied by
// *store.Store so tests can substitute fakes. Missing rows surface as
// ErrNotFound and rule violations as *validation.RequestValidationError;
// everything else is an internal error. Field names in task payloads are
// camelCase, matching the existing front end, while submit bookkeeping fields
// (task_start_time, next_task) keep their historical snake_case.
package api
