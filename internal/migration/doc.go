// Package migration copies data from the legacy flat storage file into the
// viewed-item database exactly once.
//
// Run checks the marker, copies items in bounded batches, then alert settings
// and the unlock flag, and finally records the "completed" marker. Any failure
// stops the run before the marker is written, so the next start retries;
// every step is an upsert and safe to repeat. The whole check-and-set
// sequence is serialized by a mutex.
package migration
