// Package export walks documents through the Coda API and writes them to an
// archive directory tree.
//
// Documents are exported concurrently, and within a document the tables are
// exported concurrently under a configurable limit. The Coda client's shared
// rate limiter keeps the combined request rate bounded regardless of how
// much parallelism runs above it.
package export
