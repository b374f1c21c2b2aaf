// Package verify drives the contract verification submission workflow.
package verify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tenderops/remixbridge/internal/compile"
	"github.com/tenderops/remixbridge/internal/hostbridge"
	"github.com/tenderops/remixbridge/pkg/tenderly"
)

// Backend is the slice of the gateway the workflow needs.
type Backend interface {
	VerifyContracts(ctx context.Context, v tenderly.Verification) error
	AddToProject(ctx context.Context, ref tenderly.ProjectRef, networkID, address string) error
}

// State is the phase a submission attempt ended in.
type State string

// Submission states. Every attempt moves
// Idle → FetchingArtifact → Submitting → Succeeded | Failed; the
// terminal state and cause are reported in the Result.
const (
	StateIdle             State = "idle"
	StateFetchingArtifact State = "fetching_artifact"
	StateSubmitting       State = "submitting"
	StateSucceeded        State = "succeeded"
	StateFailed           State = "failed"
)

// Cause classifies why an attempt failed.
type Cause string

const (
	CauseNone             Cause = ""
	CauseMissingInput     Cause = "missing_input"
	CauseArtifactNotFound Cause = "artifact_not_found"
	CauseCompilerTooOld   Cause = "compiler_too_old"
	CauseBytecodeMismatch Cause = "bytecode_mismatch"
	CauseBackend          Cause = "backend_error"
)

// Input are the user-chosen parameters of one submission attempt. All
// three are required; the boundary disables submission without them.
type Input struct {
	NetworkID    string
	Address      string
	ContractName string
}

func (in Input) complete() bool {
	return in.NetworkID != "" && in.Address != "" && in.ContractName != ""
}

// Result is the terminal outcome of one attempt.
type Result struct {
	State State
	Cause Cause
	Err   error
}

// Succeeded reports whether the attempt verified the contract.
func (r Result) Succeeded() bool {
	return r.State == StateSucceeded
}

// PersistResult is the outcome of the optional add-to-project step.
type PersistResult struct {
	// Attempted is false when the step was skipped because
	// verification failed.
	Attempted bool
	Succeeded bool
	Err       error
}

// Workflow submits compiled contracts for verification.
type Workflow struct {
	backend  Backend
	compiler hostbridge.CompilerHost
	logger   *slog.Logger
}

// New creates a verification workflow.
func New(backend Backend, compiler hostbridge.CompilerHost, logger *slog.Logger) *Workflow {
	return &Workflow{
		backend:  backend,
		compiler: compiler,
		logger:   logger,
	}
}

// Run executes one verification attempt: fetch the latest build
// artifact from the host, assemble the submission for the chosen
// (network, address), and post it. A precondition or artifact failure
// never reaches the network.
func (w *Workflow) Run(ctx context.Context, in Input) Result {
	if !in.complete() {
		return Result{State: StateFailed, Cause: CauseMissingInput}
	}

	// FetchingArtifact
	compilation, err := w.compiler.CompilationResult(ctx)
	if err != nil {
		w.logger.Error("fetching compilation result failed", "contract", in.ContractName, "error", err)
		return Result{State: StateFailed, Cause: CauseArtifactNotFound, Err: err}
	}

	verification, err := compile.BuildVerification(compilation, in.ContractName)
	if err != nil {
		switch {
		case errors.Is(err, compile.ErrCompilerTooOld):
			w.logger.Error("compiler below supported floor", "contract", in.ContractName, "error", err)
			return Result{State: StateFailed, Cause: CauseCompilerTooOld, Err: err}
		default:
			w.logger.Error("no build artifact for contract", "contract", in.ContractName, "error", err)
			return Result{State: StateFailed, Cause: CauseArtifactNotFound, Err: err}
		}
	}

	verification.Contracts[0].Networks[in.NetworkID] = tenderly.NetworkAddress{
		Address: in.Address,
		Links:   map[string]string{},
	}

	// Submitting
	if err := w.backend.VerifyContracts(ctx, *verification); err != nil {
		if errors.Is(err, tenderly.ErrBytecodeMismatch) {
			w.logger.Error("verification rejected", "contract", in.ContractName, "cause", "bytecode mismatch")
			return Result{State: StateFailed, Cause: CauseBytecodeMismatch, Err: err}
		}
		w.logger.Error("verification submit failed", "contract", in.ContractName, "error", err)
		return Result{State: StateFailed, Cause: CauseBackend, Err: err}
	}

	return Result{State: StateSucceeded}
}

// RunAndPersist verifies first and, only on success, attaches the same
// (network, address) pair to the given project. When verification
// fails the add step is skipped entirely.
func (w *Workflow) RunAndPersist(ctx context.Context, in Input, ref tenderly.ProjectRef) (Result, PersistResult) {
	result := w.Run(ctx, in)
	if !result.Succeeded() {
		w.logger.Info("verification not successful, skipping project add", "contract", in.ContractName)
		return result, PersistResult{}
	}

	if err := w.backend.AddToProject(ctx, ref, in.NetworkID, in.Address); err != nil {
		w.logger.Error("adding contract to project failed", "project", ref.Slug, "error", err)
		return result, PersistResult{Attempted: true, Err: err}
	}

	return result, PersistResult{Attempted: true, Succeeded: true}
}
