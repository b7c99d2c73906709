// Package store persists aplose datasets, campaigns, annotation tasks,
// results and news in SQLite.
//
// The schema is managed through embedded, ordered SQL migrations recorded in
// schema_migrations. Read helpers follow a simple convention: a missing row
// yields (nil, nil) so callers decide what "not found" means for them.
// Writes retry transparently while SQLite reports the database as busy.
package store
