package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sophialabs/stubwire/internal/domain/match"
	"github.com/sophialabs/stubwire/internal/domain/pattern"
	"github.com/sophialabs/stubwire/internal/domain/stub"
	"github.com/sophialabs/stubwire/internal/domain/trace"
	"github.com/sophialabs/stubwire/internal/infrastructure/ports"
	"github.com/sophialabs/stubwire/internal/infrastructure/services"
	"github.com/sophialabs/stubwire/internal/infrastructure/usecases"
)

const maxBodySize = 10 << 20 // 10 MB

// Server is the main HTTP server for Stubwire.
type Server struct {
	router      atomic.Pointer[chi.Mux]
	index       atomic.Pointer[services.StubIndex]
	rebuildMu   sync.Mutex
	handleReqUC *usecases.HandleRequestUseCase
	loadUC      *usecases.LoadStubsUseCase
	saveUC      *usecases.SaveStubUseCase
	deleteUC    *usecases.DeleteStubUseCase
	repo        stub.Repository
	traceBuf    *trace.RingBuffer
	logger      ports.Logger
	rootDir     string
}

// NewServer creates a new Server.
func NewServer(
	handleReqUC *usecases.HandleRequestUseCase,
	loadUC *usecases.LoadStubsUseCase,
	traceBuf *trace.RingBuffer,
	logger ports.Logger,
) *Server {
	s := &Server{
		handleReqUC: handleReqUC,
		loadUC:      loadUC,
		traceBuf:    traceBuf,
		logger:      logger,
	}
	return s
}

// SetCRUDDeps injects the optional CRUD dependencies (save, delete use cases and repo).
func (s *Server) SetCRUDDeps(saveUC *usecases.SaveStubUseCase, deleteUC *usecases.DeleteStubUseCase, repo stub.Repository, rootDir string) {
	s.saveUC = saveUC
	s.deleteUC = deleteUC
	s.repo = repo
	s.rootDir = rootDir
}

// BuildRouter creates a new chi.Mux with admin and stub routes for the given index.
func (s *Server) BuildRouter(idx *services.StubIndex) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	// Admin routes.
	r.Route("/__admin", func(r chi.Router) {
		r.Get("/stubs", s.handleListStubs)
		r.Get("/stubs/search", s.handleSearchStubs)
		r.Get("/stubs/{stubID}", s.handleGetStub)
		r.Put("/stubs/{stubID}", s.handleUpdateStub)
		r.Post("/stubs", s.handleCreateStub)
		r.Delete("/stubs/{stubID}", s.handleDeleteStub)
		r.Get("/files", s.handleListFiles)
		r.Get("/trace", s.handleGetTrace)
		r.Post("/reload", s.handleReload)
	})

	// Dynamic stub routes from index.
	for _, path := range idx.Paths() {
		routePath := path
		r.HandleFunc(routePath, s.stubHandler)
	}

	// Catch-all for unmatched paths, returns 404 with debug info.
	r.NotFound(s.notFoundHandler)

	return r
}

// Rebuild atomically swaps the router and index. Serialized via mutex.
func (s *Server) Rebuild(idx *services.StubIndex) {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	r := s.BuildRouter(idx)
	s.index.Store(idx)
	s.router.Store(r)
	s.logger.Info("router rebuilt", "paths", len(idx.Paths()))
}

// ServeHTTP implements http.Handler using the atomic router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	router := s.router.Load()
	if router == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	router.ServeHTTP(w, r)
}

func (s *Server) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("request received (no route)", "method", r.Method, "path", r.URL.Path, "query", r.URL.RawQuery, "remote", r.RemoteAddr)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	writeJSON(w, map[string]any{
		"error":   "no_match",
		"method":  r.Method,
		"path":    r.URL.Path,
		"message": "No stub registered for this path",
	})
}

func (s *Server) stubHandler(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("request received", "method", r.Method, "path", r.URL.Path, "query", r.URL.RawQuery, "remote", r.RemoteAddr)

	defer func() { _ = r.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	// Canonicalize header keys to http.CanonicalHeaderKey for consistent matching.
	headers := make(map[string]string)
	for k := range r.Header {
		headers[http.CanonicalHeaderKey(k)] = r.Header.Get(k)
	}

	queryParams := extractQueryParams(r)

	incoming := &match.IncomingRequest{
		Method:  r.Method,
		Path:    r.URL.Path,
		Headers: headers,
		Query:   queryParams,
		Body:    body,
	}

	idx := s.index.Load()
	if idx == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	// Use the chi route pattern (e.g. /api/v1/echo/{id}) for index lookup,
	// falling back to the actual path if no pattern is available.
	routePath := r.URL.Path
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		routePath = rctx.RoutePattern()
	}
	key := r.Method + ":" + routePath
	candidates := idx.Lookup(key)

	result := s.handleReqUC.Execute(r.Context(), incoming, candidates)

	if result.RateLimited {
		s.logger.Info("request rate-limited", "method", r.Method, "path", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
		writeJSON(w, map[string]string{
			"error":   "rate_limited",
			"message": "Too many requests",
		})
		return
	}

	if !result.Matched {
		s.logger.Info("request unmatched", "method", r.Method, "path", r.URL.Path, "candidates", len(result.TraceEntry.Candidates))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		debugResp := buildDebugResponse(r.Method, r.URL.Path, result.NearMisses)
		writeJSON(w, debugResp)
		return
	}

	resp := result.Response

	// Render dynamic body if a template renderer is present.
	var bodyBytes []byte
	if resp.Renderer != nil {
		renderCtx := match.RenderContext{
			Method:      r.Method,
			Path:        r.URL.Path,
			Headers:     headers,
			QueryParams: queryParams,
			PathParams:  extractPathParams(r),
			Body:        body,
			Now:         time.Now().UTC().Format(time.RFC3339),
		}
		rendered, renderErr := resp.Renderer.Render(renderCtx)
		if renderErr != nil {
			s.logger.Error("template render failed", "error", renderErr)
			http.Error(w, "template render error", http.StatusInternalServerError)
			return
		}
		bodyBytes = rendered
	} else {
		bodyBytes = resp.Body
	}

	// Pagination post-processing: slice the rendered body and wrap in envelope.
	if result.Pagination != nil {
		paginated, paginateErr := services.Paginate(bodyBytes, result.Pagination, queryParams)
		if paginateErr != nil {
			s.logger.Error("pagination failed, returning unpaginated response", "error", paginateErr)
		} else {
			bodyBytes = paginated
		}
	}

	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	w.WriteHeader(resp.Status)
	if _, err := w.Write(bodyBytes); err != nil {
		s.logger.Debug("failed to write response body", "error", err)
	}

	s.logger.Info("request matched", "method", r.Method, "path", r.URL.Path, "stub", result.TraceEntry.MatchedID, "status", resp.Status)
}

// buildDebugResponse reports the near-miss candidates, closest first, so
// callers can see how close each stub came and which field broke first.
func buildDebugResponse(method, path string, nearMisses []trace.CandidateResult) map[string]any {
	resp := map[string]any{
		"error":   "no_match",
		"method":  method,
		"path":    path,
		"message": "No stub matched the request",
	}

	if len(nearMisses) > 0 {
		candidates := make([]map[string]any, 0, len(nearMisses))
		for _, c := range nearMisses {
			candidates = append(candidates, map[string]any{
				"stub_id":       c.StubID,
				"stub_name":     c.StubName,
				"matched":       c.Matched,
				"distance":      c.Distance,
				"failed_field":  c.FailedField,
				"failed_reason": c.FailedReason,
			})
		}
		resp["candidates"] = candidates
	}

	return resp
}

func (s *Server) handleListStubs(w http.ResponseWriter, _ *http.Request) {
	idx := s.index.Load()
	if idx == nil {
		writeJSON(w, []any{})
		return
	}

	all := idx.All()
	stubs := make([]map[string]any, 0, len(all))
	for _, cs := range all {
		stubs = append(stubs, map[string]any{
			"id":       cs.ID,
			"name":     cs.Name,
			"priority": cs.Priority,
			"method":   cs.Method,
			"path_key": cs.PathKey,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, stubs)
}

func (s *Server) handleSearchStubs(w http.ResponseWriter, r *http.Request) {
	q := strings.ToLower(r.URL.Query().Get("q"))
	idx := s.index.Load()
	if idx == nil {
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, []any{})
		return
	}

	var results []map[string]any
	for _, cs := range idx.All() {
		if q == "" ||
			strings.Contains(strings.ToLower(cs.ID), q) ||
			strings.Contains(strings.ToLower(cs.Name), q) ||
			strings.Contains(strings.ToLower(cs.PathKey), q) {
			results = append(results, map[string]any{
				"id":       cs.ID,
				"name":     cs.Name,
				"priority": cs.Priority,
				"method":   cs.Method,
				"path_key": cs.PathKey,
			})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, results)
}

func (s *Server) handleListFiles(w http.ResponseWriter, _ *http.Request) {
	if s.rootDir == "" {
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, []string{})
		return
	}

	var files []string
	err := filepath.WalkDir(s.rootDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip inaccessible entries
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(s.rootDir, path)
		if relErr != nil {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		s.logger.Error("failed to list files", "error", err)
	}

	if files == nil {
		files = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, files)
}

func (s *Server) handleGetTrace(w http.ResponseWriter, r *http.Request) {
	n := 10
	if lastParam := r.URL.Query().Get("last"); lastParam != "" {
		if parsed, err := strconv.Atoi(lastParam); err == nil && parsed > 0 {
			n = parsed
		}
	}

	entries := s.traceBuf.Last(n)
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, entries)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	idx, err := s.loadUC.Execute(r.Context())
	if err != nil {
		s.logger.Error("reload failed", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		writeJSON(w, map[string]string{
			"error":   "reload_failed",
			"message": "stub reload failed, check server logs",
		})
		return
	}

	s.Rebuild(idx)
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{
		"status":  "ok",
		"message": "stubs reloaded",
	})
}

func (s *Server) handleGetStub(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "stubID")
	if s.repo == nil {
		http.Error(w, "CRUD operations not configured", http.StatusNotImplemented)
		return
	}

	st, err := s.repo.LoadByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, stub.ErrNotFound) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			writeJSON(w, map[string]string{"error": "not_found", "message": "stub not found: " + id})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		writeJSON(w, map[string]string{"error": "internal", "message": err.Error()})
		return
	}

	// Read the raw YAML source.
	sourceYAML, err := s.repo.ReadSourceYAML(r.Context(), st)
	if err != nil {
		s.logger.Warn("failed to read source YAML", "id", id, "error", err)
	}

	// Build relative source path for display.
	relPath := st.SourceFile
	if s.rootDir != "" {
		if rel, err := filepath.Rel(s.rootDir, st.SourceFile); err == nil {
			relPath = rel
		}
	}

	resp := map[string]any{
		"id":           st.ID,
		"name":         st.Name,
		"priority":     st.Priority,
		"source_file":  relPath,
		"source_index": st.SourceIndex,
		"source_yaml":  string(sourceYAML),
		"when":         buildWhenJSON(st),
		"response":     buildResponseJSON(st),
	}
	if st.Policy != nil {
		resp["policy"] = buildPolicyJSON(st.Policy)
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, resp)
}

func (s *Server) handleUpdateStub(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "stubID")
	if s.saveUC == nil {
		http.Error(w, "CRUD operations not configured", http.StatusNotImplemented)
		return
	}

	defer func() { _ = r.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	if err := s.saveUC.Execute(r.Context(), id, body); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		writeJSON(w, map[string]string{"error": "save_failed", "message": err.Error()})
		return
	}

	// Reload and rebuild.
	idx, err := s.loadUC.Execute(r.Context())
	if err != nil {
		s.logger.Error("reload after save failed", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		writeJSON(w, map[string]string{"error": "reload_failed", "message": err.Error()})
		return
	}
	s.Rebuild(idx)

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "ok", "message": "stub updated", "id": id})
}

func (s *Server) handleCreateStub(w http.ResponseWriter, r *http.Request) {
	if s.saveUC == nil {
		http.Error(w, "CRUD operations not configured", http.StatusNotImplemented)
		return
	}

	defer func() { _ = r.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	if err := s.saveUC.Execute(r.Context(), "", body); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		writeJSON(w, map[string]string{"error": "create_failed", "message": err.Error()})
		return
	}

	// Reload and rebuild.
	idx, err := s.loadUC.Execute(r.Context())
	if err != nil {
		s.logger.Error("reload after create failed", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		writeJSON(w, map[string]string{"error": "reload_failed", "message": err.Error()})
		return
	}
	s.Rebuild(idx)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, map[string]string{"status": "ok", "message": "stub created"})
}

func (s *Server) handleDeleteStub(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "stubID")
	if s.deleteUC == nil {
		http.Error(w, "CRUD operations not configured", http.StatusNotImplemented)
		return
	}

	if err := s.deleteUC.Execute(r.Context(), id); err != nil {
		if errors.Is(err, stub.ErrNotFound) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			writeJSON(w, map[string]string{"error": "not_found", "message": "stub not found: " + id})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		writeJSON(w, map[string]string{"error": "delete_failed", "message": err.Error()})
		return
	}

	// Reload and rebuild.
	idx, err := s.loadUC.Execute(r.Context())
	if err != nil {
		s.logger.Error("reload after delete failed", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		writeJSON(w, map[string]string{"error": "reload_failed", "message": err.Error()})
		return
	}
	s.Rebuild(idx)

	w.WriteHeader(http.StatusNoContent)
}

// JSON builders for the stub detail response.

func buildWhenJSON(st *stub.Stub) map[string]any {
	when := map[string]any{
		"method": st.When.Method,
		"path":   st.When.Path,
	}
	if len(st.When.Headers) > 0 {
		when["headers"] = buildPatternMapJSON(st.When.Headers)
	}
	if len(st.When.Query) > 0 {
		when["query"] = buildPatternMapJSON(st.When.Query)
	}
	if st.When.Body != nil {
		when["body"] = pattern.Decl{Pattern: st.When.Body}
	}
	return when
}

func buildPatternMapJSON(patterns map[string]pattern.ValuePattern) map[string]pattern.Decl {
	out := make(map[string]pattern.Decl, len(patterns))
	for k, p := range patterns {
		out[k] = pattern.Decl{Pattern: p}
	}
	return out
}

func buildResponseJSON(st *stub.Stub) map[string]any {
	resp := map[string]any{
		"status": st.Response.Status,
	}
	if len(st.Response.Headers) > 0 {
		resp["headers"] = st.Response.Headers
	}
	if st.Response.Body != "" {
		resp["body"] = st.Response.Body
	}
	if st.Response.BodyFile != "" {
		resp["body_file"] = st.Response.BodyFile
	}
	if st.Response.ContentType != "" {
		resp["content_type"] = st.Response.ContentType
	}
	if st.Response.Engine != "" {
		resp["engine"] = st.Response.Engine
	}
	return resp
}

func buildPolicyJSON(p *stub.Policy) map[string]any {
	result := map[string]any{}
	if p.RateLimit != nil {
		result["rate_limit"] = map[string]any{
			"rate":  p.RateLimit.Rate,
			"burst": p.RateLimit.Burst,
			"key":   p.RateLimit.Key,
		}
	}
	if p.Latency != nil {
		result["latency"] = map[string]any{
			"fixed_ms":  p.Latency.FixedMs,
			"jitter_ms": p.Latency.JitterMs,
		}
	}
	if p.Pagination != nil {
		result["pagination"] = map[string]any{
			"style":        string(p.Pagination.Style),
			"default_size": p.Pagination.DefaultSize,
			"max_size":     p.Pagination.MaxSize,
			"data_path":    p.Pagination.DataPath,
		}
	}
	return result
}

func extractQueryParams(r *http.Request) map[string]string {
	params := make(map[string]string)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	return params
}

func extractPathParams(r *http.Request) map[string]string {
	params := make(map[string]string)
	rctx := chi.RouteContext(r.Context())
	if rctx != nil {
		for i, key := range rctx.URLParams.Keys {
			if i < len(rctx.URLParams.Values) {
				params[key] = rctx.URLParams.Values[i]
			}
		}
	}
	return params
}

func writeJSON(w http.ResponseWriter, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
