package service

import (
	"context"

	"github.com/causewaydb/causeway/internal/core/port"
)

// ExplorerService exposes catalog metadata to the tool layer.
type ExplorerService struct {
	explorer port.SchemaExplorer
}

func NewExplorerService(explorer port.SchemaExplorer) *ExplorerService {
	return &ExplorerService{explorer: explorer}
}

func (s *ExplorerService) ListTables(ctx context.Context) ([]string, error) {
	return s.explorer.ListTables(ctx)
}

func (s *ExplorerService) DescribeTable(ctx context.Context, name string) (*port.TableDescriptor, error) {
	return s.explorer.DescribeTable(ctx, name)
}
