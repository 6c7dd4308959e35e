// Package legacy reads and writes the flat JSON storage file that predates
// the SQLite viewed-item database.
//
// The file is a single JSON object using the historical key names
// (mercari_viewed_items, mercari_alert_settings, mercari_premium_unlocked and
// the michatta_migration_v2 marker). It serves two roles: the one-time
// migration source, and a best-effort shadow copy refreshed after writes to
// the database. It is never read as a primary source once migration has
// completed. Unknown top-level keys are preserved on rewrite.
//
// Writes go through a temp file and rename. An in-process mutex and a
// gofrs/flock lock on "<path>.lock" serialize writers across processes.
package legacy
