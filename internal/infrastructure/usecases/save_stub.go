package usecases

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/sophialabs/stubwire/internal/domain/stub"
	"github.com/sophialabs/stubwire/internal/infrastructure/ports"
)

// SaveStubUseCase saves a stub's YAML content to disk.
type SaveStubUseCase struct {
	repo   stub.Repository
	logger ports.Logger
}

// NewSaveStubUseCase creates a new use case.
func NewSaveStubUseCase(repo stub.Repository, logger ports.Logger) *SaveStubUseCase {
	return &SaveStubUseCase{
		repo:   repo,
		logger: logger,
	}
}

// Execute saves the YAML content for a stub identified by id.
// For existing stubs, it updates the file in place.
// For new stubs (id == ""), it creates a new file.
func (uc *SaveStubUseCase) Execute(ctx context.Context, id string, yamlContent []byte) error {
	// Validate YAML parses correctly.
	var check yaml.Node
	if err := yaml.Unmarshal(yamlContent, &check); err != nil {
		return fmt.Errorf("invalid YAML: %w", err)
	}

	if id == "" {
		// New stub: create with empty source file to trigger new file creation.
		// Extract the ID from the YAML content.
		var raw struct {
			ID string `yaml:"id"`
		}
		if err := yaml.Unmarshal(yamlContent, &raw); err != nil || raw.ID == "" {
			return fmt.Errorf("new stub YAML must contain an 'id' field")
		}

		s := &stub.Stub{ID: raw.ID}
		if err := uc.repo.SaveStub(ctx, s, yamlContent); err != nil {
			return fmt.Errorf("failed to create stub: %w", err)
		}
		uc.logger.Info("stub created", "id", raw.ID)
		return nil
	}

	// Existing stub: look up its source file info.
	existing, err := uc.repo.LoadByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to find stub %q: %w", id, err)
	}

	if err := uc.repo.SaveStub(ctx, existing, yamlContent); err != nil {
		return fmt.Errorf("failed to save stub %q: %w", id, err)
	}
	uc.logger.Info("stub updated", "id", id)
	return nil
}
