// Package metrics registers the Prometheus collectors exposed by aplosed.
//
// Collectors are package-level and registered with the default registry via
// promauto. Callers record through the Record* helpers so label sets stay
// consistent between the HTTP middleware, the task workflow and the store.
package metrics
