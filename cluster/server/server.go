// Copyright (C) 2026 dociq, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package server implements the HTTP side of the cluster-peer RPC
// table of spec.md §6: one endpoint per pull-protocol operation,
// dispatched by path, base `/_db/{vocbase}/_api/aql/{op}/{queryId}`.
// Request-level logging uses zerolog, the same library the broader
// pack's server binaries (cmd/snellerd and neighbors) use, since this
// is a process-boundary concern rather than core engine internals
// (SPEC_FULL.md §2).
package server

import (
	"crypto/tls"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/acme/autocert"

	"github.com/dociq/aqlengine/cluster/rpcproto"
	"github.com/dociq/aqlengine/cluster/wire"
	"github.com/dociq/aqlengine/operator"
)

// AutocertTLSConfig builds a *tls.Config that terminates the cluster
// RPC listener with certificates from Let's Encrypt (or another ACME
// CA), for deployments that expose peer RPC directly to the internet
// rather than behind an already-terminated load balancer. cacheDir
// persists issued certificates across restarts.
func AutocertTLSConfig(cacheDir string, hosts ...string) *tls.Config {
	mgr := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(hosts...),
		Cache:      autocert.DirCache(cacheDir),
	}
	return mgr.TLSConfig()
}

// ErrQueryNotFound is the condition spec.md §7 calls out specially:
// "Peer shutdown returns QueryNotFound [...] silently mapped to
// success inside Remote.shutdown." Every other op reports it as a
// 404 with this error's text in the body.
var ErrQueryNotFound = errors.New("cluster/server: query not found")

type entry struct {
	ctx *operator.Context
	op  operator.Operator
}

// Registry binds query IDs to the running root operator (and its
// shared Context) a peer may now drive via RPC.
type Registry struct {
	mu      sync.Mutex
	queries map[string]*entry
}

// NewRegistry builds an empty query registry.
func NewRegistry() *Registry { return &Registry{queries: make(map[string]*entry)} }

// Register binds queryID to op/ctx. Call immediately before replying
// to whatever request established the remote (sub)plan.
func (r *Registry) Register(queryID string, ctx *operator.Context, op operator.Operator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries[queryID] = &entry{ctx: ctx, op: op}
}

// Unregister removes queryID, e.g. after a successful shutdown.
func (r *Registry) Unregister(queryID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.queries, queryID)
}

func (r *Registry) lookup(queryID string) (*entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.queries[queryID]
	return e, ok
}

// Server is the HTTP handler bound to one Registry.
type Server struct {
	reg *Registry
	log zerolog.Logger
}

// New builds a Server serving reg's queries, logging each request
// through log.
func New(reg *Registry, log zerolog.Logger) *Server {
	return &Server{reg: reg, log: log}
}

// ListenAndServe starts an HTTP (or, with a non-nil tlsConfig, HTTPS)
// listener on addr. A nil tlsConfig serves plaintext; cluster peers in
// a hardened deployment supply one built with
// golang.org/x/crypto-backed certificate material (e.g. autocert).
func (s *Server) ListenAndServe(addr string, tlsConfig *tls.Config) error {
	httpServer := &http.Server{Addr: addr, Handler: s, TLSConfig: tlsConfig}
	if tlsConfig != nil {
		return httpServer.ListenAndServeTLS("", "")
	}
	return httpServer.ListenAndServe()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	op, queryID, ok := parsePath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	status, shardID := s.dispatch(w, r, op, queryID)
	s.log.Info().
		Str("op", op).
		Str("queryId", queryID).
		Str("shardId", shardID).
		Int("status", status).
		Dur("latency", time.Since(start)).
		Msg("cluster rpc")
}

// parsePath splits `/_db/{vocbase}/_api/aql/{op}/{queryId}`. vocbase
// is accepted but not otherwise used by this module (multi-database
// routing is out of scope, spec.md §9 Non-goals).
func parsePath(p string) (op, queryID string, ok bool) {
	const prefix = "/_db/"
	if !strings.HasPrefix(p, prefix) {
		return "", "", false
	}
	parts := strings.Split(strings.TrimPrefix(p, prefix), "/")
	if len(parts) != 5 || parts[1] != "_api" || parts[2] != "aql" {
		return "", "", false
	}
	return parts[3], parts[4], true
}

// dispatch handles one parsed request and returns both the HTTP
// status (for the access log) and the caller's bound shard, read from
// the Shard-Id header per spec.md §6 ("A Shard-Id header is added
// when the caller has a bound shard"), so ServeHTTP can log the real
// value instead of a constant.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, op, queryID string) (status int, shardID string) {
	shardID = r.Header.Get("Shard-Id")
	e, found := s.reg.lookup(queryID)
	if !found {
		if op == "shutdown" {
			writeJSON(w, http.StatusOK, rpcproto.ShutdownResponse{Code: 0})
			return http.StatusOK, shardID
		}
		writeJSON(w, http.StatusNotFound, rpcproto.ErrorBody{Error: ErrQueryNotFound.Error()})
		return http.StatusNotFound, shardID
	}
	switch op {
	case "initializeCursor":
		return s.handleInitializeCursor(w, r, e), shardID
	case "getSome":
		return s.handleGetSome(w, r, e), shardID
	case "skipSome":
		return s.handleSkipSome(w, r, e), shardID
	case "hasMore":
		return s.handleHasMore(w, e), shardID
	case "count":
		return s.handleCount(w, e), shardID
	case "remaining":
		return s.handleRemaining(w, e), shardID
	case "shutdown":
		return s.handleShutdown(w, queryID, e), shardID
	default:
		http.NotFound(w, r)
		return http.StatusNotFound, shardID
	}
}

func (s *Server) handleInitializeCursor(w http.ResponseWriter, r *http.Request, e *entry) int {
	var req rpcproto.InitializeCursorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, rpcproto.InitializeCursorResponse{Error: err.Error()})
		return http.StatusBadRequest
	}
	items, err := wire.Decode(req.Items)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, rpcproto.InitializeCursorResponse{Error: err.Error()})
		return http.StatusBadRequest
	}
	if err := e.op.InitializeCursor(e.ctx, items, req.Pos); err != nil {
		writeJSON(w, http.StatusOK, rpcproto.InitializeCursorResponse{Error: err.Error()})
		return http.StatusOK
	}
	writeJSON(w, http.StatusOK, rpcproto.InitializeCursorResponse{Code: 0})
	return http.StatusOK
}

func (s *Server) handleGetSome(w http.ResponseWriter, r *http.Request, e *entry) int {
	var req rpcproto.GetSomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, rpcproto.GetSomeResponse{Error: err.Error()})
		return http.StatusBadRequest
	}
	before := *e.ctx.Stats
	blk, err := e.op.GetSome(e.ctx, req.AtLeast, req.AtMost)
	delta := e.ctx.Stats.Sub(before)
	if err != nil {
		writeJSON(w, http.StatusOK, rpcproto.GetSomeResponse{Error: err.Error(), Stats: toDelta(delta)})
		return http.StatusOK
	}
	if blk == nil {
		writeJSON(w, http.StatusOK, rpcproto.GetSomeResponse{Exhausted: true, Stats: toDelta(delta)})
		return http.StatusOK
	}
	encoded, err := wire.Encode(blk)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, rpcproto.GetSomeResponse{Error: err.Error()})
		return http.StatusInternalServerError
	}
	writeJSON(w, http.StatusOK, rpcproto.GetSomeResponse{Block: encoded, Stats: toDelta(delta)})
	return http.StatusOK
}

func (s *Server) handleSkipSome(w http.ResponseWriter, r *http.Request, e *entry) int {
	var req rpcproto.SkipSomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, rpcproto.SkipSomeResponse{Error: err.Error()})
		return http.StatusBadRequest
	}
	before := *e.ctx.Stats
	n, err := e.op.SkipSome(e.ctx, req.AtLeast, req.AtMost)
	delta := e.ctx.Stats.Sub(before)
	if err != nil {
		writeJSON(w, http.StatusOK, rpcproto.SkipSomeResponse{Error: err.Error(), Stats: toDelta(delta)})
		return http.StatusOK
	}
	writeJSON(w, http.StatusOK, rpcproto.SkipSomeResponse{Skipped: n, Stats: toDelta(delta)})
	return http.StatusOK
}

func (s *Server) handleHasMore(w http.ResponseWriter, e *entry) int {
	more, err := e.op.HasMore(e.ctx)
	if err != nil {
		writeJSON(w, http.StatusOK, rpcproto.HasMoreResponse{Error: err.Error()})
		return http.StatusOK
	}
	writeJSON(w, http.StatusOK, rpcproto.HasMoreResponse{HasMore: more})
	return http.StatusOK
}

func (s *Server) handleCount(w http.ResponseWriter, e *entry) int {
	n, known := e.op.Remaining(e.ctx)
	if !known {
		n = -1
	}
	writeJSON(w, http.StatusOK, rpcproto.CountResponse{Count: n})
	return http.StatusOK
}

func (s *Server) handleRemaining(w http.ResponseWriter, e *entry) int {
	n, known := e.op.Remaining(e.ctx)
	writeJSON(w, http.StatusOK, rpcproto.RemainingResponse{Remaining: n, Known: known})
	return http.StatusOK
}

func (s *Server) handleShutdown(w http.ResponseWriter, queryID string, e *entry) int {
	var code int
	// spec.md §6: a shutdown's request body carries {code}; the code
	// itself is not currently consulted by any operator's Shutdown.
	err := e.op.Shutdown(e.ctx, code)
	s.reg.Unregister(queryID)
	if err != nil {
		writeJSON(w, http.StatusOK, rpcproto.ShutdownResponse{Error: err.Error()})
		return http.StatusOK
	}
	writeJSON(w, http.StatusOK, rpcproto.ShutdownResponse{Code: 0, Warnings: e.ctx.Warnings.All()})
	return http.StatusOK
}

func toDelta(s operator.Stats) rpcproto.StatsDelta {
	return rpcproto.StatsDelta{
		ScannedFull:    s.ScannedFull,
		ScannedIndex:   s.ScannedIndex,
		Filtered:       s.Filtered,
		WritesExecuted: s.WritesExecuted,
		WritesIgnored:  s.WritesIgnored,
		FullCount:      s.FullCount,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
