// Package database provides the opt-in search history of cssfinder.
//
// HistoryDB stores:
//   - one row per recorded search (crawl key, query, totals)
//   - the per-page match counts of each recorded search
//   - the latest metadata and content hash of every page seen
//
// The store uses SQLite through modernc.org/sqlite, which needs no cgo.
// The crawl cache itself is never persisted; history only records what
// was searched and found.
package database
