package api

import "errors"

// ErrNotFound reports a missing campaign, task or article, or a task that
// belongs to another annotator.
var ErrNotFound = errors.New("not found")
