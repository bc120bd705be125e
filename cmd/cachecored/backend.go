package main

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rcache/engine/boc"
	"github.com/rcache/engine/body"
	"github.com/rcache/engine/config"
	"github.com/rcache/engine/digest"
	"github.com/rcache/engine/lookup"
	"github.com/rcache/engine/object"
	"github.com/rcache/engine/stevedore"
)

// originFetcher is the external collaborator standing in for a full
// director (spec §12): it knows how to turn a recorded request into an
// outbound fetch against a single configured origin, and how to stream the
// response into an objcore's body through the normal GetSpace/Extend
// producer path. It implements lookup.Backend so the engine can drive
// background EXP revalidation through the same path a foreground MISS
// uses.
type originFetcher struct {
	client *http.Client
	origin *url.URL
	alloc  *body.Allocator
	cfg    config.Params
	log    *slog.Logger

	requests *requestLog
	stv      *stevedore.Registry

	// engine is set once by main after both are constructed — Engine
	// needs a Backend at New() time, and the Backend needs the Engine to
	// insert/unbusy its own refreshes, so the reference is wired in after
	// the fact rather than threaded through New().
	engine *lookup.Engine
}

// fill runs the producer side of a fetch synchronously: dial the origin,
// copy status and headers into oc.Hdr, then stream the body into oc.Body
// chunk by chunk as it arrives, publishing progress via BOC so any
// already-coalesced readers can stream alongside the producer.
func (f *originFetcher) fill(ctx context.Context, method, path string, hdr http.Header, oc *object.Objcore, stv stevedore.Stevedore) error {
	bc := oc.BOC()
	outURL := *f.origin
	outURL.Path = path

	req, err := http.NewRequestWithContext(ctx, method, outURL.String(), nil)
	if err != nil {
		return err
	}
	for k, vs := range hdr {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var hb bytes.Buffer
	if err := resp.Header.Write(&hb); err != nil {
		return err
	}
	if err := oc.Hdr.SetAttr(object.AttrStatus, []byte(strconv.Itoa(resp.StatusCode)), stv, f.allocAttr); err != nil {
		return err
	}
	if err := oc.Hdr.SetAttr(object.AttrMethod, []byte(method), stv, f.allocAttr); err != nil {
		return err
	}
	if err := oc.Hdr.SetAttr(object.AttrURL, []byte(path), stv, f.allocAttr); err != nil {
		return err
	}
	if err := oc.Hdr.SetAttr(object.AttrHeaders, hb.Bytes(), stv, f.allocAttr); err != nil {
		return err
	}

	bc.SetState(boc.Stream)

	buf := make([]byte, f.alloc.ChunkSize)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if werr := f.writeChunk(oc, stv, buf[:n]); werr != nil {
				return werr
			}
		}
		if rerr != nil {
			break
		}
	}

	oc.Body.Trim(bc, f.alloc)
	bc.SetState(boc.Finished)
	return nil
}

// allocAttr adapts body.Allocator.Alloc to the narrower signature
// object.Object.SetAttr expects for allocating an auxiliary attribute's
// backing chunk.
func (f *originFetcher) allocAttr(stv stevedore.Stevedore, size int) (*stevedore.Chunk, error) {
	return f.alloc.Alloc(stv, size, stevedore.LessOK)
}

func (f *originFetcher) writeChunk(oc *object.Objcore, stv stevedore.Stevedore, p []byte) error {
	remaining := p
	for len(remaining) > 0 {
		chunk, free, err := oc.Body.GetSpace(oc.BOC(), f.alloc, stv, len(remaining))
		if err != nil {
			return err
		}
		n := len(remaining)
		if n > free {
			n = free
		}
		copy(chunk.Bytes[chunk.Len:], remaining[:n])
		oc.Body.Extend(oc.BOC(), n)
		remaining = remaining[n:]
	}
	return nil
}

// Refetch implements lookup.Backend: a background revalidation triggered by
// the engine itself on an EXP hit (spec §4.5, "Lookup" background-refetch
// note). It replays the method/path/headers that last produced d through a
// fresh Busy objcore, inserted under the same objhead, and swaps it in via
// the ordinary Insert/fill/Unbusy sequence a foreground MISS would use —
// any lookup racing the refetch will see EXPBUSY and keep serving the
// stale copy until Unbusy rushes it in.
func (f *originFetcher) Refetch(ctx context.Context, d digest.Digest, stale *object.Objcore) {
	rec, ok := f.requests.lookup(d)
	if !ok {
		return
	}

	res := f.engine.Lookup(d, rec.vary, true)
	defer f.engine.Release(res.Head)

	stv := f.stv.Next()
	fresh := f.engine.Insert(res.Head, false, stv, f.cfg.DefaultTTL, f.cfg.DefaultGrace, f.cfg.DefaultKeep)
	fresh.Vary = rec.vary
	fresh.SetStobj(stv, nil)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := f.fill(ctx, rec.method, rec.path, rec.header, fresh, stv); err != nil {
		f.engine.Fail(res.Head, fresh)
		f.log.Warn("background refetch failed", "digest", d.String(), "path", rec.path, "error", err)
		return
	}
	f.engine.Unbusy(d, res.Head, fresh, 0)
	f.log.Debug("background refetch complete", "digest", d.String(), "path", rec.path)
}
