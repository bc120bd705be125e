package main

import (
	"net/http"
	"sync"

	"github.com/rcache/engine/digest"
)

// recordedRequest is enough of an inbound request to replay it against the
// origin later, for a background EXP revalidation (originFetcher.Refetch).
type recordedRequest struct {
	method string
	path   string
	header http.Header
	vary   []byte
}

// requestLog remembers the most recent request that produced each digest.
// This is the narrow substitute for a real director/VCL layer (spec §12):
// just enough state for this demo's background refetch to know what to
// ask the origin for.
type requestLog struct {
	mu      sync.Mutex
	entries map[digest.Digest]recordedRequest
}

func newRequestLog() *requestLog {
	return &requestLog{entries: make(map[digest.Digest]recordedRequest)}
}

func (l *requestLog) record(d digest.Digest, r recordedRequest) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[d] = r
}

func (l *requestLog) lookup(d digest.Digest) (recordedRequest, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.entries[d]
	return r, ok
}
