package services_test

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sophialabs/stubwire/internal/domain/match"
	"github.com/sophialabs/stubwire/internal/domain/pattern"
	"github.com/sophialabs/stubwire/internal/domain/stub"
	"github.com/sophialabs/stubwire/internal/infrastructure/services"
)

func newTestCompiler(t *testing.T) *services.Compiler {
	t.Helper()
	c, err := services.NewCompiler(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewCompiler failed: %v", err)
	}
	return c
}

func findPattern(cs *match.CompiledStub, field string) pattern.ValuePattern {
	for _, fp := range cs.Patterns {
		if fp.Field == field {
			return fp.Pattern
		}
	}
	return nil
}

func TestCompiler_SimpleStub(t *testing.T) {
	compiler := newTestCompiler(t)

	s := &stub.Stub{
		ID:       "test-1",
		Name:     "Test",
		Priority: 10,
		When: stub.WhenClause{
			Method: "GET",
			Path:   "/api/health",
		},
		Response: stub.Response{
			Status: 200,
			Body:   `{"ok": true}`,
		},
	}

	cs, err := compiler.CompileStub(s)
	if err != nil {
		t.Fatalf("CompileStub failed: %v", err)
	}

	if cs.ID != "test-1" {
		t.Errorf("unexpected ID: %s", cs.ID)
	}
	if cs.PathKey != "GET:/api/health" {
		t.Errorf("unexpected PathKey: %s", cs.PathKey)
	}
	if cs.Response.Status != 200 {
		t.Errorf("unexpected status: %d", cs.Response.Status)
	}
	if string(cs.Response.Body) != `{"ok": true}` {
		t.Errorf("unexpected body: %s", cs.Response.Body)
	}

	p := findPattern(cs, "method")
	if p == nil {
		t.Fatal("expected a method pattern")
	}
	get, post := "GET", "POST"
	if !p.Match(&get).IsExactMatch() {
		t.Error("method pattern should match GET")
	}
	if p.Match(&post).IsExactMatch() {
		t.Error("method pattern should not match POST")
	}
}

func TestCompiler_HeaderCanonicalization(t *testing.T) {
	compiler := newTestCompiler(t)

	s := &stub.Stub{
		ID: "hdr-test",
		When: stub.WhenClause{
			Method: "POST",
			Path:   "/api/test",
			Headers: map[string]pattern.ValuePattern{
				"content-type": pattern.EqualTo("application/json"),
				"x-api-key":    pattern.Matching("^key-[0-9]+$"),
			},
		},
		Response: stub.Response{Status: 200},
	}

	cs, err := compiler.CompileStub(s)
	if err != nil {
		t.Fatalf("CompileStub failed: %v", err)
	}

	if findPattern(cs, "header:Content-Type") == nil {
		t.Error("expected canonicalized header field 'header:Content-Type'")
	}
	if findPattern(cs, "header:X-Api-Key") == nil {
		t.Error("expected canonicalized header field 'header:X-Api-Key'")
	}
}

func TestCompiler_QueryAndBodyPatterns(t *testing.T) {
	compiler := newTestCompiler(t)

	s := &stub.Stub{
		ID: "query-body",
		When: stub.WhenClause{
			Method: "POST",
			Path:   "/api/orders",
			Query: map[string]pattern.ValuePattern{
				"dryRun": pattern.EqualTo("true"),
			},
			Body: pattern.MatchingXPathWithNamespaces("//o:order",
				map[string]string{"o": "http://orders"}),
		},
		Response: stub.Response{Status: 201},
	}

	cs, err := compiler.CompileStub(s)
	if err != nil {
		t.Fatalf("CompileStub failed: %v", err)
	}

	if findPattern(cs, "query:dryRun") == nil {
		t.Error("expected field 'query:dryRun'")
	}
	bp := findPattern(cs, "body")
	if bp == nil {
		t.Fatal("expected field 'body'")
	}
	doc := `<order xmlns="http://orders"><id>1</id></order>`
	if !bp.Match(&doc).IsExactMatch() {
		t.Error("body pattern should match the namespaced document")
	}
}

func TestCompiler_InvalidRegexRejected(t *testing.T) {
	compiler := newTestCompiler(t)

	s := &stub.Stub{
		ID: "bad-regex",
		When: stub.WhenClause{
			Method: "GET",
			Path:   "/test",
			Headers: map[string]pattern.ValuePattern{
				"X-Trace": pattern.Matching("[invalid"),
			},
		},
		Response: stub.Response{Status: 200},
	}

	if _, err := compiler.CompileStub(s); err == nil {
		t.Error("expected error for invalid regex")
	}
}

func TestCompiler_NestedCompositeCompileError(t *testing.T) {
	compiler := newTestCompiler(t)

	s := &stub.Stub{
		ID: "nested-error",
		When: stub.WhenClause{
			Method: "POST",
			Path:   "/test",
			Body: pattern.AllOf(
				pattern.Containing("ok"),
				pattern.Not(pattern.Matching("[invalid")),
			),
		},
		Response: stub.Response{Status: 200},
	}

	if _, err := compiler.CompileStub(s); err == nil {
		t.Error("expected error for invalid regex inside composite")
	}
}

func TestCompiler_InvalidExpectedJSONRejected(t *testing.T) {
	compiler := newTestCompiler(t)

	s := &stub.Stub{
		ID: "bad-json",
		When: stub.WhenClause{
			Method: "POST",
			Path:   "/test",
			Body:   pattern.EqualToJSON(`{broken`),
		},
		Response: stub.Response{Status: 200},
	}

	if _, err := compiler.CompileStub(s); err == nil {
		t.Error("expected error for unparseable expected JSON document")
	}
}

func TestCompiler_DefaultStatus(t *testing.T) {
	compiler := newTestCompiler(t)

	s := &stub.Stub{
		ID: "no-status",
		When: stub.WhenClause{
			Method: "GET",
			Path:   "/test",
		},
		Response: stub.Response{Body: "hello"},
	}

	cs, err := compiler.CompileStub(s)
	if err != nil {
		t.Fatalf("CompileStub failed: %v", err)
	}
	if cs.Response.Status != 200 {
		t.Errorf("expected default status 200, got %d", cs.Response.Status)
	}
}

func TestCompiler_Policy(t *testing.T) {
	compiler := newTestCompiler(t)

	s := &stub.Stub{
		ID: "with-policy",
		When: stub.WhenClause{
			Method: "GET",
			Path:   "/test",
		},
		Response: stub.Response{Status: 200},
		Policy: &stub.Policy{
			RateLimit: &stub.RateLimit{Rate: 5, Burst: 2, Key: "ip"},
			Latency:   &stub.Latency{FixedMs: 100, JitterMs: 20},
		},
	}

	cs, err := compiler.CompileStub(s)
	if err != nil {
		t.Fatalf("CompileStub failed: %v", err)
	}
	if cs.Policy == nil {
		t.Fatal("expected compiled policy")
	}
	if cs.Policy.RateLimit == nil || cs.Policy.RateLimit.Rate != 5 {
		t.Error("unexpected rate limit")
	}
	if cs.Policy.Latency == nil || cs.Policy.Latency.FixedMs != 100 {
		t.Error("unexpected latency")
	}
}

func TestCompiler_PolicyWithPagination(t *testing.T) {
	compiler := newTestCompiler(t)

	s := &stub.Stub{
		ID: "with-pagination",
		When: stub.WhenClause{
			Method: "GET",
			Path:   "/test",
		},
		Response: stub.Response{Status: 200},
		Policy: &stub.Policy{
			Pagination: &stub.Pagination{
				Style:       stub.PaginationOffsetLimit,
				DefaultSize: 20,
				MaxSize:     50,
				DataPath:    "$.results",
				OffsetParam: "start",
				LimitParam:  "count",
				Envelope: stub.PaginationEnvelope{
					DataField:        "items",
					TotalItemsField:  "total",
					TotalPagesField:  "pages",
					PageField:        "current_page",
					SizeField:        "per_page",
					HasNextField:     "more",
					HasPreviousField: "less",
				},
			},
		},
	}

	cs, err := compiler.CompileStub(s)
	if err != nil {
		t.Fatalf("CompileStub failed: %v", err)
	}

	if cs.Policy == nil || cs.Policy.Pagination == nil {
		t.Fatal("expected pagination policy")
	}

	p := cs.Policy.Pagination
	if p.Style != "offset_limit" {
		t.Errorf("expected offset_limit style, got %q", p.Style)
	}
	if p.DefaultSize != 20 {
		t.Errorf("expected default_size 20, got %d", p.DefaultSize)
	}
	if p.Envelope.DataField != "items" {
		t.Errorf("expected data field 'items', got %q", p.Envelope.DataField)
	}
}

func TestCompiler_BodyFileResolution(t *testing.T) {
	dir := t.TempDir()
	bodyPath := filepath.Join(dir, "response.json")
	if err := os.WriteFile(bodyPath, []byte(`{"from":"file"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	compiler, err := services.NewCompiler(dir, nil)
	if err != nil {
		t.Fatal(err)
	}

	s := &stub.Stub{
		ID: "body-file",
		When: stub.WhenClause{
			Method: "GET",
			Path:   "/test",
		},
		Response: stub.Response{
			Status:   200,
			BodyFile: "response.json",
		},
	}

	cs, err := compiler.CompileStub(s)
	if err != nil {
		t.Fatalf("CompileStub failed: %v", err)
	}
	if string(cs.Response.Body) != `{"from":"file"}` {
		t.Errorf("unexpected body: %s", cs.Response.Body)
	}
}

func TestCompiler_BodyFileAbsolutePathRejected(t *testing.T) {
	compiler := newTestCompiler(t)

	s := &stub.Stub{
		ID: "abs-path",
		When: stub.WhenClause{
			Method: "GET",
			Path:   "/test",
		},
		Response: stub.Response{
			Status:   200,
			BodyFile: "/etc/passwd",
		},
	}

	if _, err := compiler.CompileStub(s); err == nil {
		t.Error("expected error for absolute body_file path")
	}
}

func TestCompiler_BodyFileTraversalRejected(t *testing.T) {
	compiler := newTestCompiler(t)

	s := &stub.Stub{
		ID: "traversal",
		When: stub.WhenClause{
			Method: "GET",
			Path:   "/test",
		},
		Response: stub.Response{
			Status:   200,
			BodyFile: "../../../etc/passwd",
		},
	}

	if _, err := compiler.CompileStub(s); err == nil {
		t.Error("expected error for traversal body_file path")
	}
}

func TestCompiler_BodyFileMissing(t *testing.T) {
	compiler := newTestCompiler(t)

	s := &stub.Stub{
		ID: "missing-file",
		When: stub.WhenClause{
			Method: "GET",
			Path:   "/test",
		},
		Response: stub.Response{
			Status:   200,
			BodyFile: "nonexistent.json",
		},
	}

	if _, err := compiler.CompileStub(s); err == nil {
		t.Error("expected error for missing body_file")
	}
}

// fakeRegistry implements TemplateRegistry for testing.
type fakeRegistry struct {
	err error
}

func (f *fakeRegistry) Compile(engine, name, source string) (match.BodyRenderer, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &fakeRenderer{body: []byte(source)}, nil
}

type fakeRenderer struct {
	body []byte
}

func (f *fakeRenderer) Render(_ match.RenderContext) ([]byte, error) {
	return f.body, nil
}

func TestCompiler_TemplateEngineNoRegistry(t *testing.T) {
	compiler := newTestCompiler(t) // nil registry

	s := &stub.Stub{
		ID: "template-no-registry",
		When: stub.WhenClause{
			Method: "GET",
			Path:   "/test",
		},
		Response: stub.Response{
			Status: 200,
			Body:   "hello ${name}",
			Engine: "expr",
		},
	}

	if _, err := compiler.CompileStub(s); err == nil {
		t.Error("expected error when engine set but no registry")
	}
}

func TestCompiler_TemplateCompileError(t *testing.T) {
	dir := t.TempDir()
	reg := &fakeRegistry{err: fmt.Errorf("compile error")}
	compiler, err := services.NewCompiler(dir, reg)
	if err != nil {
		t.Fatal(err)
	}

	s := &stub.Stub{
		ID: "template-error",
		When: stub.WhenClause{
			Method: "GET",
			Path:   "/test",
		},
		Response: stub.Response{
			Status: 200,
			Body:   "bad template",
			Engine: "expr",
		},
	}

	if _, err := compiler.CompileStub(s); err == nil {
		t.Error("expected error for template compilation failure")
	}
}

func TestCompiler_TemplateSuccess(t *testing.T) {
	dir := t.TempDir()
	reg := &fakeRegistry{}
	compiler, err := services.NewCompiler(dir, reg)
	if err != nil {
		t.Fatal(err)
	}

	s := &stub.Stub{
		ID: "template-ok",
		When: stub.WhenClause{
			Method: "GET",
			Path:   "/test",
		},
		Response: stub.Response{
			Status: 200,
			Body:   "hello world",
			Engine: "expr",
		},
	}

	cs, err := compiler.CompileStub(s)
	if err != nil {
		t.Fatalf("CompileStub failed: %v", err)
	}

	if cs.Response.Renderer == nil {
		t.Error("expected renderer to be set")
	}
}

func TestPaginate_RootNonArray(t *testing.T) {
	body := []byte(`{"not":"an array"}`)
	cfg := &match.CompiledPagination{
		Style:       "page_size",
		PageParam:   "page",
		SizeParam:   "size",
		DefaultSize: 10,
		MaxSize:     100,
		DataPath:    "$",
		Envelope:    defaultEnvelope(),
	}

	if _, err := services.Paginate(body, cfg, map[string]string{}); err == nil {
		t.Error("expected error for root non-array")
	}
}

func TestPaginate_JSONPathExtractionError(t *testing.T) {
	body := []byte(`{"items": [1,2,3]}`)
	cfg := &match.CompiledPagination{
		Style:       "page_size",
		PageParam:   "page",
		SizeParam:   "size",
		DefaultSize: 10,
		MaxSize:     100,
		DataPath:    "$.nonexistent.deep.path",
		Envelope:    defaultEnvelope(),
	}

	if _, err := services.Paginate(body, cfg, map[string]string{}); err == nil {
		t.Error("expected error for invalid data path")
	}
}

func TestPaginate_NonArrayAtDataPath(t *testing.T) {
	body := []byte(`{"items": "not array"}`)
	cfg := &match.CompiledPagination{
		Style:       "page_size",
		PageParam:   "page",
		SizeParam:   "size",
		DefaultSize: 10,
		MaxSize:     100,
		DataPath:    "$.items",
		Envelope:    defaultEnvelope(),
	}

	if _, err := services.Paginate(body, cfg, map[string]string{}); err == nil {
		t.Error("expected error for non-array at data path")
	}
}

func TestPaginate_OffsetLimitInvalidParams(t *testing.T) {
	body := []byte(`{"items": [1,2,3,4,5]}`)
	cfg := &match.CompiledPagination{
		Style:       "offset_limit",
		OffsetParam: "offset",
		LimitParam:  "limit",
		DefaultSize: 10,
		MaxSize:     100,
		DataPath:    "$.items",
		Envelope:    defaultEnvelope(),
	}

	// negative offset and non-numeric limit should use defaults
	result, err := services.Paginate(body, cfg, map[string]string{"offset": "-5", "limit": "abc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var env map[string]any
	if err := json.Unmarshal(result, &env); err != nil {
		t.Fatal(err)
	}
	// offset defaults to 0, limit defaults to 10
	if env["has_previous"] != false {
		t.Error("expected has_previous=false with default offset")
	}
}

func TestPaginate_ZeroMaxSize(t *testing.T) {
	body := []byte(`{"items": [1,2,3]}`)
	cfg := &match.CompiledPagination{
		Style:       "page_size",
		PageParam:   "page",
		SizeParam:   "size",
		DefaultSize: 5,
		MaxSize:     0, // limit capped to 0, then fallback to 10
		DataPath:    "$.items",
		Envelope:    defaultEnvelope(),
	}

	result, err := services.Paginate(body, cfg, map[string]string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var env map[string]any
	if err := json.Unmarshal(result, &env); err != nil {
		t.Fatal(err)
	}
	// limit fallback to 10
	if env["size"].(float64) != 10 {
		t.Errorf("expected size 10 (fallback), got %v", env["size"])
	}
}

func defaultEnvelope() match.CompiledPaginationEnvelope {
	return match.CompiledPaginationEnvelope{
		DataField:        "data",
		PageField:        "page",
		SizeField:        "size",
		TotalItemsField:  "total_items",
		TotalPagesField:  "total_pages",
		HasNextField:     "has_next",
		HasPreviousField: "has_previous",
	}
}
