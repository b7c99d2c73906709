package logging

import "log/slog"

// Attr aliases slog.Attr so callers only import this package.
type Attr = slog.Attr

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

// Error records err under the "error" key.
func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// Campaign tags a record with the annotation campaign it concerns.
func Campaign(id int64) Attr { return slog.Int64(FieldCampaignID, id) }

// Task tags a record with the annotation task it concerns.
func Task(id int64) Attr { return slog.Int64(FieldTaskID, id) }

// NewNop returns a logger that drops every record.
func NewNop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// NewComponentLogger adds the component attribute to logger, or to a no-op
// logger when logger is nil.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}
