// Package preflight provides readiness checks for the filesystem paths and
// the database that aplose depends on.
//
// These checks run in two contexts:
//   - The daemon's /healthz endpoint runs RunAll on every request.
//   - The CLI "aplose status" command renders the same results.
package preflight
