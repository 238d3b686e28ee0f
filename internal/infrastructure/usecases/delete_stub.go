package usecases

import (
	"context"
	"fmt"

	"github.com/sophialabs/stubwire/internal/domain/stub"
	"github.com/sophialabs/stubwire/internal/infrastructure/ports"
)

// DeleteStubUseCase removes a stub from its source file.
type DeleteStubUseCase struct {
	repo   stub.Repository
	logger ports.Logger
}

// NewDeleteStubUseCase creates a new use case.
func NewDeleteStubUseCase(repo stub.Repository, logger ports.Logger) *DeleteStubUseCase {
	return &DeleteStubUseCase{
		repo:   repo,
		logger: logger,
	}
}

// Execute removes the stub with the given ID.
func (uc *DeleteStubUseCase) Execute(ctx context.Context, id string) error {
	existing, err := uc.repo.LoadByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to find stub %q: %w", id, err)
	}

	if err := uc.repo.DeleteStub(ctx, existing.SourceFile, existing.SourceIndex); err != nil {
		return fmt.Errorf("failed to delete stub %q: %w", id, err)
	}

	uc.logger.Info("stub deleted", "id", id)
	return nil
}
