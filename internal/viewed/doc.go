// Package viewed persists which listings a user has already seen.
//
// The Store wraps a SQLite database holding two collections: viewed_items
// (item id to last-viewed millisecond timestamp, indexed by timestamp) and
// settings (a small fixed vocabulary of JSON values). A bounded recency cache
// fronts item reads; it only ever holds entries that were read from or
// committed to the database, so a cache miss always falls through.
//
// Reads never fail from the caller's point of view: persistence errors are
// logged and mapped to empty results, zero, defaults or false. Writes return
// an error and leave previously committed data untouched when they fail.
//
// After every successful write a single background worker refreshes the
// legacy mirror with a full snapshot. Refreshes coalesce, never block the
// writer, and are held back until legacy migration has completed so the
// mirror cannot overwrite data that has not been copied yet.
//
// Schema steps live in migrations/ and are applied once each, tracked by the
// schema_version table. Add a numbered file and bump schemaVersion.
package viewed
