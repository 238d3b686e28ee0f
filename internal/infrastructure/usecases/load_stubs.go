package usecases

import (
	"context"
	"fmt"

	"github.com/sophialabs/stubwire/internal/domain/stub"
	"github.com/sophialabs/stubwire/internal/infrastructure/ports"
	"github.com/sophialabs/stubwire/internal/infrastructure/services"
)

// LoadStubsUseCase loads all stubs, compiles them, and builds an index.
type LoadStubsUseCase struct {
	repo          stub.Repository
	compiler      *services.Compiler
	logger        ports.Logger
	defaultEngine string
}

// NewLoadStubsUseCase creates a new use case.
func NewLoadStubsUseCase(repo stub.Repository, compiler *services.Compiler, logger ports.Logger) *LoadStubsUseCase {
	return &LoadStubsUseCase{
		repo:     repo,
		compiler: compiler,
		logger:   logger,
	}
}

// SetDefaultEngine sets the global default engine applied to stubs without an explicit engine.
func (uc *LoadStubsUseCase) SetDefaultEngine(engine string) {
	uc.defaultEngine = engine
}

// Execute loads, compiles, validates, and returns the built index.
func (uc *LoadStubsUseCase) Execute(ctx context.Context) (*services.StubIndex, error) {
	stubs, err := uc.repo.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stubs: %w", err)
	}

	uc.logger.Info("loaded stubs from repository", "count", len(stubs))

	// Apply global default engine where not overridden.
	if uc.defaultEngine != "" {
		for _, s := range stubs {
			if s.Response.Engine == "" {
				s.Response.Engine = uc.defaultEngine
			}
		}
	}

	// Validate ID uniqueness.
	ids := make(map[string]bool, len(stubs))
	for _, s := range stubs {
		if ids[s.ID] {
			return nil, fmt.Errorf("duplicate stub ID: %q", s.ID)
		}
		ids[s.ID] = true
	}

	// Compile and build index.
	index := services.NewStubIndex()
	var compileErrors []string

	for _, s := range stubs {
		cs, err := uc.compiler.CompileStub(s)
		if err != nil {
			compileErrors = append(compileErrors, err.Error())
			uc.logger.Warn("failed to compile stub", "id", s.ID, "error", err)
			continue
		}
		index.Add(cs)
		uc.logger.Debug("compiled stub", "id", cs.ID, "key", cs.PathKey)
	}

	if len(compileErrors) > 0 {
		uc.logger.Warn("some stubs failed to compile", "errors", len(compileErrors))
	}

	index.Build()

	uc.logger.Info("stub index built", "keys", len(index.Keys()), "paths", len(index.Paths()))

	return index, nil
}
