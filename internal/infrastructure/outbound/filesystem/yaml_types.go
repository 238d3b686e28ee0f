package filesystem

// yamlStub is the YAML deserialization target for stub files.
//
// Header, query and body conditions hold declarative pattern values: either
// a bare string (shorthand for equalTo) or an object with a single match-kind
// key such as matchesXPath, equalToJson, matches, and, or, not.
type yamlStub struct {
	ID       string       `yaml:"id"`
	Name     string       `yaml:"name"`
	Priority int          `yaml:"priority"`
	When     yamlWhen     `yaml:"when"`
	Response yamlResponse `yaml:"response"`
	Policy   *yamlPolicy  `yaml:"policy,omitempty"`
}

type yamlWhen struct {
	Method  string         `yaml:"method"`
	Path    string         `yaml:"path"`
	Headers map[string]any `yaml:"headers,omitempty"`
	Query   map[string]any `yaml:"query,omitempty"`
	Body    any            `yaml:"body,omitempty"`
}

type yamlResponse struct {
	Status      int               `yaml:"status"`
	Headers     map[string]string `yaml:"headers,omitempty"`
	Body        string            `yaml:"body,omitempty"`
	BodyFile    string            `yaml:"body_file,omitempty"`
	ContentType string            `yaml:"content_type,omitempty"`
	Engine      string            `yaml:"engine,omitempty"`
}

type yamlPolicy struct {
	RateLimit  *yamlRateLimit  `yaml:"rate_limit,omitempty"`
	Latency    *yamlLatency    `yaml:"latency,omitempty"`
	Pagination *yamlPagination `yaml:"pagination,omitempty"`
}

type yamlRateLimit struct {
	Rate  float64 `yaml:"rate"`
	Burst int     `yaml:"burst"`
	Key   string  `yaml:"key,omitempty"`
}

type yamlLatency struct {
	FixedMs  int `yaml:"fixed_ms,omitempty"`
	JitterMs int `yaml:"jitter_ms,omitempty"`
}

type yamlPagination struct {
	Style       string                  `yaml:"style,omitempty"`
	PageParam   string                  `yaml:"page_param,omitempty"`
	SizeParam   string                  `yaml:"size_param,omitempty"`
	OffsetParam string                  `yaml:"offset_param,omitempty"`
	LimitParam  string                  `yaml:"limit_param,omitempty"`
	DefaultSize int                     `yaml:"default_size,omitempty"`
	MaxSize     int                     `yaml:"max_size,omitempty"`
	DataPath    string                  `yaml:"data_path,omitempty"`
	Envelope    *yamlPaginationEnvelope `yaml:"envelope,omitempty"`
}

type yamlPaginationEnvelope struct {
	DataField        string `yaml:"data_field,omitempty"`
	PageField        string `yaml:"page_field,omitempty"`
	SizeField        string `yaml:"size_field,omitempty"`
	TotalItemsField  string `yaml:"total_items_field,omitempty"`
	TotalPagesField  string `yaml:"total_pages_field,omitempty"`
	HasNextField     string `yaml:"has_next_field,omitempty"`
	HasPreviousField string `yaml:"has_previous_field,omitempty"`
}
