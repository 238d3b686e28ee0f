package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sophialabs/stubwire/internal/domain/pattern"
	"github.com/sophialabs/stubwire/internal/domain/stub"
)

var _ stub.Repository = (*YAMLRepository)(nil)

// YAMLRepository loads stubs from YAML files in a directory tree.
type YAMLRepository struct {
	rootDir  string
	resolver *IncludeResolver
}

// NewYAMLRepository creates a repository rooted at rootDir.
func NewYAMLRepository(rootDir string) (*YAMLRepository, error) {
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root directory: %w", err)
	}
	return &YAMLRepository{
		rootDir:  absRoot,
		resolver: NewIncludeResolver(absRoot),
	}, nil
}

// LoadAll walks the root directory for .yaml files and returns parsed stubs.
func (r *YAMLRepository) LoadAll(_ context.Context) ([]*stub.Stub, error) {
	var stubs []*stub.Stub

	err := filepath.WalkDir(r.rootDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		loaded, err := r.loadFile(path)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		stubs = append(stubs, loaded...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk stubs directory: %w", err)
	}

	return stubs, nil
}

func (r *YAMLRepository) loadFile(path string) ([]*stub.Stub, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	// Parse into yaml.Node tree to handle !include tags.
	var rootNode yaml.Node
	if err := yaml.Unmarshal(data, &rootNode); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	fileDir := filepath.Dir(path)
	if err := r.resolver.ResolveIncludes(&rootNode, fileDir); err != nil {
		return nil, fmt.Errorf("failed to resolve includes: %w", err)
	}

	// Decode resolved node tree into typed structures.
	// Support both single stub and list of stubs.
	var stubs []*stub.Stub

	// Try as a list first.
	if rootNode.Kind == yaml.DocumentNode && len(rootNode.Content) > 0 {
		content := rootNode.Content[0]
		if content.Kind == yaml.SequenceNode {
			for i, item := range content.Content {
				s, err := decodeStubNode(item)
				if err != nil {
					return nil, err
				}
				s.SourceFile = path
				s.SourceIndex = i
				stubs = append(stubs, s)
			}
			return stubs, nil
		}

		// Single stub.
		s, err := decodeStubNode(content)
		if err != nil {
			return nil, err
		}
		s.SourceFile = path
		s.SourceIndex = -1
		return []*stub.Stub{s}, nil
	}

	return nil, fmt.Errorf("unexpected YAML structure in %s", path)
}

// LoadByID loads a single stub by its ID.
func (r *YAMLRepository) LoadByID(ctx context.Context, id string) (*stub.Stub, error) {
	all, err := r.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stubs: %w", err)
	}
	for _, s := range all {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, stub.ErrNotFound
}

// SaveStub writes stub YAML content to disk.
// For existing stubs (SourceFile set), it updates the file.
// For new stubs (SourceFile empty), it creates a new file.
func (r *YAMLRepository) SaveStub(_ context.Context, s *stub.Stub, yamlContent []byte) error {
	// Validate the YAML parses correctly.
	var check yaml.Node
	if err := yaml.Unmarshal(yamlContent, &check); err != nil {
		return fmt.Errorf("invalid YAML: %w", err)
	}

	if s.SourceFile == "" {
		// New stub: create file at rootDir/stubs/<id>.yaml
		dir := filepath.Join(r.rootDir, "stubs")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create stubs directory: %w", err)
		}
		target := filepath.Join(dir, s.ID+".yaml")

		// Path traversal check.
		if err := r.validatePathWithinRoot(target); err != nil {
			return err
		}

		return atomicWriteFile(target, yamlContent)
	}

	// Path traversal check for existing files.
	if err := r.validatePathWithinRoot(s.SourceFile); err != nil {
		return err
	}

	if s.SourceIndex < 0 {
		// Single-stub file: replace entire file.
		return atomicWriteFile(s.SourceFile, yamlContent)
	}

	// Multi-stub file: replace the entry at SourceIndex.
	return r.replaceInSequence(s.SourceFile, s.SourceIndex, yamlContent)
}

// DeleteStub removes a stub from its source file.
func (r *YAMLRepository) DeleteStub(_ context.Context, sourceFile string, sourceIndex int) error {
	if err := r.validatePathWithinRoot(sourceFile); err != nil {
		return err
	}

	if sourceIndex < 0 {
		// Single-stub file: delete the file.
		if err := os.Remove(sourceFile); err != nil {
			return fmt.Errorf("failed to delete stub file: %w", err)
		}
		return nil
	}

	// Multi-stub file: remove the entry at sourceIndex.
	return r.removeFromSequence(sourceFile, sourceIndex)
}

// ReadSourceYAML reads the raw YAML content for a specific stub.
func (r *YAMLRepository) ReadSourceYAML(_ context.Context, s *stub.Stub) ([]byte, error) {
	if s.SourceFile == "" {
		return nil, fmt.Errorf("stub has no source file")
	}

	data, err := os.ReadFile(s.SourceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read source file: %w", err)
	}

	if s.SourceIndex < 0 {
		// Single-stub file: return entire content.
		return data, nil
	}

	// Multi-stub file: extract the specific entry.
	return r.extractFromSequence(data, s.SourceIndex)
}

// validatePathWithinRoot ensures a path resolves within the root directory.
func (r *YAMLRepository) validatePathWithinRoot(path string) error {
	resolved, err := filepath.EvalSymlinks(filepath.Dir(path))
	if err != nil {
		// If the directory doesn't exist yet, check the absolute path.
		abs, absErr := filepath.Abs(path)
		if absErr != nil {
			return fmt.Errorf("failed to resolve path: %w", err)
		}
		if !strings.HasPrefix(abs, r.rootDir) {
			return fmt.Errorf("path traversal denied: %s is outside root %s", path, r.rootDir)
		}
		return nil
	}
	if !strings.HasPrefix(resolved, r.rootDir) {
		return fmt.Errorf("path traversal denied: %s is outside root %s", path, r.rootDir)
	}
	return nil
}

// atomicWriteFile writes content to a temp file then renames it to the target path.
func atomicWriteFile(target string, content []byte) error {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, ".stubwire-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// replaceInSequence replaces an entry at a given index in a YAML sequence file.
func (r *YAMLRepository) replaceInSequence(filePath string, index int, newContent []byte) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var rootNode yaml.Node
	if err := yaml.Unmarshal(data, &rootNode); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	if rootNode.Kind != yaml.DocumentNode || len(rootNode.Content) == 0 {
		return fmt.Errorf("unexpected YAML structure")
	}
	seq := rootNode.Content[0]
	if seq.Kind != yaml.SequenceNode {
		return fmt.Errorf("file is not a YAML sequence")
	}
	if index >= len(seq.Content) {
		return fmt.Errorf("index %d out of range (file has %d entries)", index, len(seq.Content))
	}

	// Parse the new content into a node.
	var newNode yaml.Node
	if err := yaml.Unmarshal(newContent, &newNode); err != nil {
		return fmt.Errorf("failed to parse replacement YAML: %w", err)
	}
	if newNode.Kind != yaml.DocumentNode || len(newNode.Content) == 0 {
		return fmt.Errorf("unexpected replacement YAML structure")
	}

	seq.Content[index] = newNode.Content[0]

	out, err := yaml.Marshal(&rootNode)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return atomicWriteFile(filePath, out)
}

// removeFromSequence removes an entry at a given index from a YAML sequence file.
func (r *YAMLRepository) removeFromSequence(filePath string, index int) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var rootNode yaml.Node
	if err := yaml.Unmarshal(data, &rootNode); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	if rootNode.Kind != yaml.DocumentNode || len(rootNode.Content) == 0 {
		return fmt.Errorf("unexpected YAML structure")
	}
	seq := rootNode.Content[0]
	if seq.Kind != yaml.SequenceNode {
		return fmt.Errorf("file is not a YAML sequence")
	}
	if index >= len(seq.Content) {
		return fmt.Errorf("index %d out of range (file has %d entries)", index, len(seq.Content))
	}

	// Remove the entry.
	seq.Content = append(seq.Content[:index], seq.Content[index+1:]...)

	if len(seq.Content) == 0 {
		// No more entries: delete the file.
		return os.Remove(filePath)
	}

	out, err := yaml.Marshal(&rootNode)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return atomicWriteFile(filePath, out)
}

// extractFromSequence extracts a single entry from a YAML sequence.
func (r *YAMLRepository) extractFromSequence(data []byte, index int) ([]byte, error) {
	var rootNode yaml.Node
	if err := yaml.Unmarshal(data, &rootNode); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if rootNode.Kind != yaml.DocumentNode || len(rootNode.Content) == 0 {
		return nil, fmt.Errorf("unexpected YAML structure")
	}
	seq := rootNode.Content[0]
	if seq.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("file is not a YAML sequence")
	}
	if index >= len(seq.Content) {
		return nil, fmt.Errorf("index %d out of range (file has %d entries)", index, len(seq.Content))
	}

	out, err := yaml.Marshal(seq.Content[index])
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entry: %w", err)
	}
	return out, nil
}

func decodeStubNode(node *yaml.Node) (*stub.Stub, error) {
	var ys yamlStub
	if err := node.Decode(&ys); err != nil {
		return nil, fmt.Errorf("failed to decode stub: %w", err)
	}
	return toStub(&ys)
}

func toStub(ys *yamlStub) (*stub.Stub, error) {
	s := &stub.Stub{
		ID:       ys.ID,
		Name:     ys.Name,
		Priority: ys.Priority,
		When: stub.WhenClause{
			Method: ys.When.Method,
			Path:   ys.When.Path,
		},
		Response: stub.Response{
			Status:      ys.Response.Status,
			Headers:     ys.Response.Headers,
			Body:        ys.Response.Body,
			BodyFile:    ys.Response.BodyFile,
			ContentType: ys.Response.ContentType,
			Engine:      ys.Response.Engine,
		},
	}

	if ys.When.Headers != nil {
		s.When.Headers = make(map[string]pattern.ValuePattern, len(ys.When.Headers))
		for k, v := range ys.When.Headers {
			p, err := pattern.FromAny(v)
			if err != nil {
				return nil, fmt.Errorf("stub %q: header %q: %w", ys.ID, k, err)
			}
			s.When.Headers[k] = p
		}
	}

	if ys.When.Query != nil {
		s.When.Query = make(map[string]pattern.ValuePattern, len(ys.When.Query))
		for k, v := range ys.When.Query {
			p, err := pattern.FromAny(v)
			if err != nil {
				return nil, fmt.Errorf("stub %q: query %q: %w", ys.ID, k, err)
			}
			s.When.Query[k] = p
		}
	}

	if ys.When.Body != nil {
		p, err := pattern.FromAny(ys.When.Body)
		if err != nil {
			return nil, fmt.Errorf("stub %q: body: %w", ys.ID, err)
		}
		s.When.Body = p
	}

	if ys.Policy != nil {
		s.Policy = toPolicy(ys.Policy)
	}

	return s, nil
}

func toPolicy(yp *yamlPolicy) *stub.Policy {
	if yp == nil {
		return nil
	}

	p := &stub.Policy{}

	if yp.RateLimit != nil {
		p.RateLimit = &stub.RateLimit{
			Rate:  yp.RateLimit.Rate,
			Burst: yp.RateLimit.Burst,
			Key:   yp.RateLimit.Key,
		}
	}

	if yp.Latency != nil {
		p.Latency = &stub.Latency{
			FixedMs:  yp.Latency.FixedMs,
			JitterMs: yp.Latency.JitterMs,
		}
	}

	if yp.Pagination != nil {
		p.Pagination = toPagination(yp.Pagination)
	}

	return p
}

func toPagination(yp *yamlPagination) *stub.Pagination {
	p := &stub.Pagination{
		Style:       stub.PaginationStyle(yp.Style),
		PageParam:   yp.PageParam,
		SizeParam:   yp.SizeParam,
		OffsetParam: yp.OffsetParam,
		LimitParam:  yp.LimitParam,
		DefaultSize: yp.DefaultSize,
		MaxSize:     yp.MaxSize,
		DataPath:    yp.DataPath,
	}

	switch p.Style {
	case stub.PaginationPageSize, stub.PaginationOffsetLimit:
		// valid
	default:
		p.Style = stub.PaginationPageSize
	}
	if p.PageParam == "" {
		p.PageParam = "page"
	}
	if p.SizeParam == "" {
		p.SizeParam = "size"
	}
	if p.OffsetParam == "" {
		p.OffsetParam = "offset"
	}
	if p.LimitParam == "" {
		p.LimitParam = "limit"
	}
	if p.DefaultSize == 0 {
		p.DefaultSize = 10
	}
	if p.MaxSize == 0 {
		p.MaxSize = 100
	}
	if p.DataPath == "" {
		p.DataPath = "$"
	}

	p.Envelope = toPaginationEnvelope(yp.Envelope)
	return p
}

func toPaginationEnvelope(ye *yamlPaginationEnvelope) stub.PaginationEnvelope {
	env := stub.PaginationEnvelope{
		DataField:        "data",
		PageField:        "page",
		SizeField:        "size",
		TotalItemsField:  "total_items",
		TotalPagesField:  "total_pages",
		HasNextField:     "has_next",
		HasPreviousField: "has_previous",
	}
	if ye == nil {
		return env
	}
	if ye.DataField != "" {
		env.DataField = ye.DataField
	}
	if ye.PageField != "" {
		env.PageField = ye.PageField
	}
	if ye.SizeField != "" {
		env.SizeField = ye.SizeField
	}
	if ye.TotalItemsField != "" {
		env.TotalItemsField = ye.TotalItemsField
	}
	if ye.TotalPagesField != "" {
		env.TotalPagesField = ye.TotalPagesField
	}
	if ye.HasNextField != "" {
		env.HasNextField = ye.HasNextField
	}
	if ye.HasPreviousField != "" {
		env.HasPreviousField = ye.HasPreviousField
	}
	return env
}
