// Package hostbridge defines the contract between the bridge and the
// in-browser IDE host, and implements it over a websocket session.
//
// The host owns the compiler and the workspace file system. The bridge
// only ever needs two calls (getCompilationResult, setFile) and one
// event (compilationFinished) from it.
package hostbridge

import (
	"context"
	"errors"
	"sort"
)

// Errors returned by host-bridge implementations.
var (
	// ErrNoHost indicates no IDE is currently connected.
	ErrNoHost = errors.New("no host connected")
)

// CompilationResult mirrors the host compiler's last-compilation
// payload: the nested build data plus the source mapping it was
// produced from.
type CompilationResult struct {
	Data   CompilationData   `json:"data"`
	Source CompilationSource `json:"source"`
}

// CompilationData holds the per-file, per-contract build output.
type CompilationData struct {
	Contracts map[string]map[string]CompiledContract `json:"contracts"`
}

// CompiledContract is one contract's build artifact. Metadata is the
// solc metadata JSON, kept as a string exactly as the compiler emits it.
type CompiledContract struct {
	Metadata string `json:"metadata"`
}

// CompilationSource holds the compiled target and its source files.
type CompilationSource struct {
	Target  string                   `json:"target"`
	Sources map[string]SourceContent `json:"sources"`
}

// SourceContent is one source file's text.
type SourceContent struct {
	Content string `json:"content"`
}

// ContractNames flattens the nested file→contract mapping into a
// deduplicated, lexicographically sorted list of contract names.
func (d CompilationData) ContractNames() []string {
	seen := make(map[string]bool)
	for _, contracts := range d.Contracts {
		for name := range contracts {
			seen[name] = true
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// CompilationEvent is the compilation-finished notification pushed by
// the host.
type CompilationEvent struct {
	FileName        string            `json:"file_name"`
	Source          CompilationSource `json:"source"`
	LanguageVersion string            `json:"language_version"`
	Data            CompilationData   `json:"data"`
}

// CompilerHost exposes the host's compiler. The result is fetched on
// demand; it is never cached from the event payload.
type CompilerHost interface {
	CompilationResult(ctx context.Context) (*CompilationResult, error)
}

// Workspace exposes the host's file-write capability.
type Workspace interface {
	WriteFile(ctx context.Context, path, content string) error
}
