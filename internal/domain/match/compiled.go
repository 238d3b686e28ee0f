package match

import "github.com/sophialabs/stubwire/internal/domain/pattern"

// FieldPattern binds a named request field to its compiled value pattern.
// Field is one of "method", "path", "body", "header:<Name>" or "query:<name>".
type FieldPattern struct {
	Field   string
	Pattern pattern.ValuePattern
}

// CompiledStub holds a stub with its compiled field patterns.
type CompiledStub struct {
	ID       string
	Name     string
	Priority int
	Method   string
	PathKey  string
	Patterns []FieldPattern
	Response CompiledResponse
	Policy   *CompiledPolicy
}

// BodyRenderer renders a response body dynamically. Nil means static body.
type BodyRenderer interface {
	Render(ctx RenderContext) ([]byte, error)
}

// RenderContext provides request data for dynamic body rendering.
type RenderContext struct {
	Method      string
	Path        string
	Headers     map[string]string
	QueryParams map[string]string
	PathParams  map[string]string
	Body        []byte
	Now         string // ISO-8601 timestamp
}

// CompiledResponse is a resolved response ready to serve.
type CompiledResponse struct {
	Status      int
	Headers     map[string]string
	Body        []byte       // used when Renderer is nil
	Renderer    BodyRenderer // non-nil for dynamic bodies
	ContentType string
}

// CompiledPolicy holds resolved policy configuration.
type CompiledPolicy struct {
	RateLimit  *CompiledRateLimit
	Latency    *CompiledLatency
	Pagination *CompiledPagination
}

// CompiledPagination holds resolved pagination parameters.
type CompiledPagination struct {
	Style       string
	PageParam   string
	SizeParam   string
	OffsetParam string
	LimitParam  string
	DefaultSize int
	MaxSize     int
	DataPath    string
	Envelope    CompiledPaginationEnvelope
}

// CompiledPaginationEnvelope names the fields of the pagination envelope.
type CompiledPaginationEnvelope struct {
	DataField        string
	PageField        string
	SizeField        string
	TotalItemsField  string
	TotalPagesField  string
	HasNextField     string
	HasPreviousField string
}

// CompiledRateLimit holds rate limit parameters.
type CompiledRateLimit struct {
	Rate  float64
	Burst int
	Key   string
}

// CompiledLatency holds latency simulation parameters.
type CompiledLatency struct {
	FixedMs  int
	JitterMs int
}
