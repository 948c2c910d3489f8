// Package coda is a client for the Coda.io REST API (v1), covering the
// subset the exporter needs: listing documents, walking a document's tables,
// columns and rows, and upserting rows for reimport.
//
// All list endpoints are paginated; the client follows nextPageLink cursors
// transparently and hands items to a per-item callback. Every request goes
// through a token-bucket rate limiter, an adaptive backoff gate that pauses
// all traffic after a 429 response, and an exponential-backoff retry loop.
package coda
