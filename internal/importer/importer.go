// Package importer copies stored contract sources back into the host
// workspace.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/tenderops/remixbridge/internal/hostbridge"
	"github.com/tenderops/remixbridge/pkg/tenderly"
)

// pathPrefix namespaces all imported files in the host workspace.
const pathPrefix = "tenderly"

// Errors returned by the import workflow.
var (
	// ErrUnknownContract indicates the requested id is not in the
	// registry cache. The UI should not offer such ids; importing one
	// is a no-op.
	ErrUnknownContract = errors.New("unknown contract")
	// ErrIncomplete indicates one or more file writes failed. The batch
	// result does not distinguish which.
	ErrIncomplete = errors.New("import incomplete")
)

// Registry is the slice of the contract registry the importer needs.
type Registry interface {
	Get(id string) (tenderly.Account, bool)
	Fetch(ctx context.Context, networkID, address string) (*tenderly.Account, error)
}

// Workflow imports stored contracts into the host workspace.
type Workflow struct {
	registry  Registry
	workspace hostbridge.Workspace
	logger    *slog.Logger
}

// New creates an import workflow.
func New(registry Registry, workspace hostbridge.Workspace, logger *slog.Logger) *Workflow {
	return &Workflow{
		registry:  registry,
		workspace: workspace,
		logger:    logger,
	}
}

// Import fetches the full record for a cached contract id and writes
// each of its source files into the workspace under
// tenderly/{slug}/..., sequentially and verbatim. If the fetch fails
// nothing is written. Write failures fail the batch as a whole.
func (w *Workflow) Import(ctx context.Context, contractID, slug string) error {
	account, ok := w.registry.Get(contractID)
	if !ok {
		return ErrUnknownContract
	}

	full, err := w.registry.Fetch(ctx, account.Contract.NetworkID, account.Contract.Address)
	if err != nil {
		return fmt.Errorf("fetching contract %s: %w", contractID, err)
	}

	failed := 0
	for _, info := range full.Contract.Data.ContractInfo {
		target := workspacePath(slug, info.Path)
		if err := w.workspace.WriteFile(ctx, target, info.Source); err != nil {
			w.logger.Error("writing imported file failed", "path", target, "error", err)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d file(s) not written", ErrIncomplete, failed)
	}
	return nil
}

// workspacePath builds the workspace destination for one source file,
// normalizing separators to forward slashes regardless of where the
// contract was originally compiled.
func workspacePath(slug, file string) string {
	unix := strings.ReplaceAll(file, "\\", "/")
	return path.Join(pathPrefix, slug, unix)
}
