package main

import (
	"github.com/rcache/engine/body"
	"github.com/rcache/engine/config"
)

// bodyAllocator builds the shared body.Allocator from the daemon's
// configured tunables (spec §4.2, component C2).
func bodyAllocator(cfg config.Params) *body.Allocator {
	return body.NewAllocator(cfg.FetchChunkSize, cfg.FetchMaxChunkSize, cfg.NukeLimit)
}
