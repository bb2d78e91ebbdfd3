// Package sqlite persists feature tables and per-frame alignment records.
//
// The schema is owned by internal/db migrations; stores here take a
// *sql.DB that is already migrated. Core packages (l1..l5) never import
// this package.
package sqlite
