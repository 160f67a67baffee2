// Package journal defines the dispatch journal contract: an append-only log
// of dispatched actions with replay queries. Engines implement the Journal
// interface; the middleware package provides the pipeline stage that feeds
// one. The store core never depends on a journal.
package journal
