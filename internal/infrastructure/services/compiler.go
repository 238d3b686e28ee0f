package services

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sophialabs/stubwire/internal/domain/match"
	"github.com/sophialabs/stubwire/internal/domain/pattern"
	"github.com/sophialabs/stubwire/internal/domain/stub"
)

// TemplateRegistry compiles template sources into body renderers by engine name.
type TemplateRegistry interface {
	Compile(engine, name, source string) (match.BodyRenderer, error)
}

// Compiler transforms domain stubs into compiled stubs with field patterns.
type Compiler struct {
	rootDir  string
	registry TemplateRegistry // nil means no template support
}

// NewCompiler creates a new Compiler bound to the given root directory for body_file resolution.
// registry may be nil, in which case stubs with an engine field will fail to compile.
func NewCompiler(rootDir string, registry TemplateRegistry) (*Compiler, error) {
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root directory: %w", err)
	}
	return &Compiler{rootDir: absRoot, registry: registry}, nil
}

// CompileStub turns a Stub into a CompiledStub.
func (c *Compiler) CompileStub(s *stub.Stub) (*match.CompiledStub, error) {
	patterns, err := compileWhen(&s.When)
	if err != nil {
		return nil, fmt.Errorf("failed to compile stub %q: %w", s.ID, err)
	}

	resp, err := c.compileResponse(&s.Response)
	if err != nil {
		return nil, fmt.Errorf("failed to compile response for %q: %w", s.ID, err)
	}

	cs := &match.CompiledStub{
		ID:       s.ID,
		Name:     s.Name,
		Priority: s.Priority,
		Method:   s.When.Method,
		PathKey:  s.When.Method + ":" + s.When.Path,
		Patterns: patterns,
		Response: resp,
	}

	if s.Policy != nil {
		cs.Policy = compilePolicy(s.Policy)
	}

	return cs, nil
}

func compileWhen(w *stub.WhenClause) ([]match.FieldPattern, error) {
	var patterns []match.FieldPattern

	// Method pattern: always exact.
	if w.Method != "" {
		patterns = append(patterns, match.FieldPattern{
			Field:   "method",
			Pattern: pattern.EqualTo(w.Method),
		})
	}

	// Header patterns: sorted for deterministic ordering.
	for _, name := range sortedKeys(w.Headers) {
		p := w.Headers[name]
		if err := validatePattern(p); err != nil {
			return nil, fmt.Errorf("header %q: %w", name, err)
		}
		// Canonicalize header name to match HTTP canonical form.
		patterns = append(patterns, match.FieldPattern{
			Field:   "header:" + http.CanonicalHeaderKey(name),
			Pattern: p,
		})
	}

	// Query parameter patterns.
	for _, name := range sortedKeys(w.Query) {
		p := w.Query[name]
		if err := validatePattern(p); err != nil {
			return nil, fmt.Errorf("query %q: %w", name, err)
		}
		patterns = append(patterns, match.FieldPattern{
			Field:   "query:" + name,
			Pattern: p,
		})
	}

	if w.Body != nil {
		if err := validatePattern(w.Body); err != nil {
			return nil, fmt.Errorf("body: %w", err)
		}
		patterns = append(patterns, match.FieldPattern{
			Field:   "body",
			Pattern: w.Body,
		})
	}

	return patterns, nil
}

func sortedKeys(m map[string]pattern.ValuePattern) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// validatePattern surfaces construction errors that patterns otherwise
// swallow into permanent no-matches, so broken stub files are rejected at
// load time instead of silently never matching.
func validatePattern(p pattern.ValuePattern) error {
	type compileChecker interface{ CompileErr() error }

	switch v := p.(type) {
	case compileChecker:
		return v.CompileErr()
	case *pattern.AndPattern:
		for _, op := range v.Operands() {
			if err := validatePattern(op); err != nil {
				return err
			}
		}
	case *pattern.OrPattern:
		for _, op := range v.Operands() {
			if err := validatePattern(op); err != nil {
				return err
			}
		}
	case *pattern.NotPattern:
		return validatePattern(v.Operand())
	}
	return nil
}

func (c *Compiler) compileResponse(r *stub.Response) (match.CompiledResponse, error) {
	resp := match.CompiledResponse{
		Status:      r.Status,
		Headers:     r.Headers,
		ContentType: r.ContentType,
	}

	if resp.Status == 0 {
		resp.Status = 200
	}

	// Resolve body content (inline or from file).
	var bodySource string
	if r.BodyFile != "" {
		resolved, err := c.resolveBodyFilePath(r.BodyFile)
		if err != nil {
			return resp, err
		}
		data, err := os.ReadFile(resolved)
		if err != nil {
			return resp, fmt.Errorf("failed to read body_file %q: %w", r.BodyFile, err)
		}
		bodySource = string(data)
	} else {
		bodySource = r.Body
	}

	// If engine is set, compile as template; otherwise treat as static.
	if r.Engine != "" {
		if c.registry == nil {
			return resp, fmt.Errorf("template engine %q requested but no registry configured", r.Engine)
		}
		name := r.BodyFile
		if name == "" {
			name = "inline"
		}
		renderer, err := c.registry.Compile(r.Engine, name, bodySource)
		if err != nil {
			return resp, fmt.Errorf("failed to compile template (engine=%s): %w", r.Engine, err)
		}
		resp.Renderer = renderer
	} else {
		resp.Body = []byte(bodySource)
	}

	return resp, nil
}

// resolveBodyFilePath resolves and validates body_file paths to prevent directory traversal.
func (c *Compiler) resolveBodyFilePath(path string) (string, error) {
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("absolute paths not allowed in body_file: %s", path)
	}

	resolved := filepath.Join(c.rootDir, path)

	// Evaluate symlinks and verify the path stays within rootDir.
	realPath, err := filepath.EvalSymlinks(resolved)
	if err != nil {
		realPath = filepath.Clean(resolved)
	}

	absRoot, err := filepath.EvalSymlinks(c.rootDir)
	if err != nil {
		absRoot = c.rootDir
	}

	if !strings.HasPrefix(realPath, absRoot) {
		return "", fmt.Errorf("body_file path %q escapes root directory", path)
	}

	return resolved, nil
}

func compilePolicy(p *stub.Policy) *match.CompiledPolicy {
	cp := &match.CompiledPolicy{}

	if p.RateLimit != nil {
		cp.RateLimit = &match.CompiledRateLimit{
			Rate:  p.RateLimit.Rate,
			Burst: p.RateLimit.Burst,
			Key:   p.RateLimit.Key,
		}
	}

	if p.Latency != nil {
		cp.Latency = &match.CompiledLatency{
			FixedMs:  p.Latency.FixedMs,
			JitterMs: p.Latency.JitterMs,
		}
	}

	if p.Pagination != nil {
		cp.Pagination = &match.CompiledPagination{
			Style:       string(p.Pagination.Style),
			PageParam:   p.Pagination.PageParam,
			SizeParam:   p.Pagination.SizeParam,
			OffsetParam: p.Pagination.OffsetParam,
			LimitParam:  p.Pagination.LimitParam,
			DefaultSize: p.Pagination.DefaultSize,
			MaxSize:     p.Pagination.MaxSize,
			DataPath:    p.Pagination.DataPath,
			Envelope: match.CompiledPaginationEnvelope{
				DataField:        p.Pagination.Envelope.DataField,
				PageField:        p.Pagination.Envelope.PageField,
				SizeField:        p.Pagination.Envelope.SizeField,
				TotalItemsField:  p.Pagination.Envelope.TotalItemsField,
				TotalPagesField:  p.Pagination.Envelope.TotalPagesField,
				HasNextField:     p.Pagination.Envelope.HasNextField,
				HasPreviousField: p.Pagination.Envelope.HasPreviousField,
			},
		}
	}

	return cp
}
