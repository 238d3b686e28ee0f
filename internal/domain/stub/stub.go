package stub

import "github.com/sophialabs/stubwire/internal/domain/pattern"

// Stub represents a single request stub definition.
type Stub struct {
	ID       string
	Name     string
	Priority int
	When     WhenClause
	Response Response
	Policy   *Policy

	// SourceFile and SourceIndex locate the stub in its backing YAML file.
	// SourceIndex is -1 for single-stub files.
	SourceFile  string
	SourceIndex int
}

// WhenClause defines the conditions for matching an incoming request.
// Header and query patterns apply to the named field's value; a missing
// header or query parameter is an absent candidate and never matches.
type WhenClause struct {
	Method  string
	Path    string
	Headers map[string]pattern.ValuePattern
	Query   map[string]pattern.ValuePattern
	Body    pattern.ValuePattern
}

// Response defines what the stub server returns.
type Response struct {
	Status      int
	Headers     map[string]string
	Body        string
	BodyFile    string
	ContentType string
	Engine      string // "" = static, "expr", "jinja2"
}

// Policy defines rate limiting, latency simulation and response pagination.
type Policy struct {
	RateLimit  *RateLimit
	Latency    *Latency
	Pagination *Pagination
}

// RateLimit configures token-bucket rate limiting.
type RateLimit struct {
	Rate  float64
	Burst int
	Key   string
}

// Latency configures response delay simulation.
type Latency struct {
	FixedMs  int
	JitterMs int
}

// PaginationStyle selects how page bounds are read from query parameters.
type PaginationStyle string

const (
	PaginationPageSize    PaginationStyle = "page_size"
	PaginationOffsetLimit PaginationStyle = "offset_limit"
)

// Pagination configures slicing of JSON array responses.
type Pagination struct {
	Style       PaginationStyle
	PageParam   string
	SizeParam   string
	OffsetParam string
	LimitParam  string
	DefaultSize int
	MaxSize     int
	// DataPath is a JSONPath expression locating the array to paginate.
	DataPath string
	Envelope PaginationEnvelope
}

// PaginationEnvelope names the fields of the wrapping response object.
type PaginationEnvelope struct {
	DataField        string
	PageField        string
	SizeField        string
	TotalItemsField  string
	TotalPagesField  string
	HasNextField     string
	HasPreviousField string
}
