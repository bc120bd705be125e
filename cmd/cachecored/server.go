package main

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/rcache/engine/digest"
	"github.com/rcache/engine/lookup"
	"github.com/rcache/engine/metrics"
	"github.com/rcache/engine/object"
	"github.com/rcache/engine/stevedore"
)

// Server is the thin HTTP adapter that exercises the lookup engine's
// external interface end to end (spec §6). It is deliberately not a
// general reverse-proxy transport: no TLS termination, no VCL-equivalent
// request/response policy, no admin CLI protocol — those are explicit
// non-goals the core itself never touches.
type Server struct {
	engine  *lookup.Engine
	stv     *stevedore.Registry
	fetcher *originFetcher
	metrics *metrics.Registry
	log     *slog.Logger

	waitTimeout time.Duration
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	vary := []byte(r.Header.Get("Accept-Encoding"))
	d := digestFor(r.Method, r.URL.Path, vary)

	res := s.engine.Lookup(d, vary, false)
	defer s.engine.Release(res.Head)

	switch res.Outcome {
	case lookup.Hit:
		s.serve(w, res.Oc)
	case lookup.Exp, lookup.ExpBusy:
		// Grace-served stale copy; for EXP, Lookup has started a background
		// refetch if a refetch slot was free, and EXPBUSY means one is
		// already in flight.
		s.serve(w, res.Oc)
	case lookup.Busy:
		s.awaitAndServe(w, r, d, vary)
	case lookup.Miss:
		s.fillAndServe(w, r, d, vary, res.Head)
	}
}

func (s *Server) awaitAndServe(w http.ResponseWriter, r *http.Request, d digest.Digest, vary []byte) {
	res := s.engine.Lookup(d, vary, false)
	defer s.engine.Release(res.Head)

	result := s.engine.WaitOnBusy(res.Head, time.Now().Add(s.waitTimeout))
	if result != object.Rushed {
		http.Error(w, "gateway timeout", http.StatusGatewayTimeout)
		return
	}

	final := s.engine.Lookup(d, vary, false)
	defer s.engine.Release(final.Head)
	if final.Oc == nil {
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	s.serve(w, final.Oc)
}

func (s *Server) fillAndServe(w http.ResponseWriter, r *http.Request, d digest.Digest, vary []byte, head *object.Objhead) {
	stv := s.stv.Next()
	oc := s.engine.Insert(head, false, stv, s.fetcher.cfg.DefaultTTL, s.fetcher.cfg.DefaultGrace, s.fetcher.cfg.DefaultKeep)
	oc.Vary = vary
	oc.SetStobj(stv, nil)

	s.fetcher.requests.record(d, recordedRequest{
		method: r.Method,
		path:   r.URL.Path,
		header: r.Header.Clone(),
		vary:   vary,
	})

	if err := s.fetcher.fill(r.Context(), r.Method, r.URL.Path, r.Header, oc, stv); err != nil {
		s.engine.Fail(head, oc)
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	s.engine.Unbusy(d, head, oc, 0)
	s.serve(w, oc)
}

// serve streams oc's stored status, headers and body to w, reading
// concurrently with a still-in-progress producer when oc.BOC() is non-nil
// (spec §4.3, the streaming reader side of BOC).
func (s *Server) serve(w http.ResponseWriter, oc *object.Objcore) {
	if statusB, ok := oc.Hdr.GetAttr(object.AttrStatus); ok {
		if code, err := strconv.Atoi(string(statusB)); err == nil {
			if hdrB, ok := oc.Hdr.GetAttr(object.AttrHeaders); ok {
				writeHeaders(w, hdrB)
			}
			w.WriteHeader(code)
		}
	}

	bc := oc.BOC()
	err := oc.Body.Iterate(bc, bc == nil, func(flush, last bool, p []byte) error {
		if len(p) == 0 {
			return nil
		}
		_, werr := w.Write(p)
		if flusher, ok := w.(http.Flusher); ok && flush {
			flusher.Flush()
		}
		return werr
	})
	if err != nil {
		s.log.Warn("body iterate failed", "error", err)
	}
}

// digestFor canonicalizes method, path and the negotiated vary vector into
// a cache key (spec §3.1, "hash key").
func digestFor(method, path string, vary []byte) digest.Digest {
	return digest.NewBuilder().
		AddString(method).
		AddString(path).
		AddBytes(vary).
		Sum()
}

// writeHeaders replays a raw MIME-formatted header blob (as produced by
// http.Header.Write) onto w's header map.
func writeHeaders(w http.ResponseWriter, raw []byte) {
	hdr, err := parseRawHeader(raw)
	if err != nil {
		return
	}
	for k, vs := range hdr {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
}
