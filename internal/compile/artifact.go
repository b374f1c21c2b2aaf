package compile

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/tenderops/remixbridge/internal/hostbridge"
	"github.com/tenderops/remixbridge/pkg/tenderly"
)

// Errors returned during artifact extraction.
var (
	// ErrArtifactNotFound indicates no usable build artifact exists for
	// the requested contract name.
	ErrArtifactNotFound = errors.New("artifact not found")
	// ErrCompilerTooOld indicates the contract was built with a compiler
	// older than the verification backend accepts.
	ErrCompilerTooOld = errors.New("compiler version too old")
)

// minCompilerVersion is the oldest solc release the backend verifies.
const minCompilerVersion = "v0.4.11"

// solcMetadata is the subset of the compiler metadata JSON the bridge
// needs.
type solcMetadata struct {
	Compiler struct {
		Version string `json:"version"`
	} `json:"compiler"`
	Settings struct {
		EVMVersion string `json:"evmVersion"`
		Optimizer  struct {
			Enabled bool `json:"enabled"`
			Runs    int  `json:"runs"`
		} `json:"optimizer"`
	} `json:"settings"`
}

// BuildVerification extracts the build artifact for contractName from
// the host's last compilation and assembles a verification submission
// with a single contract entry and no network entries yet.
//
// It fails with ErrArtifactNotFound before any network traffic when the
// compilation is missing, the contract name is unknown, or the metadata
// is incomplete.
func BuildVerification(result *hostbridge.CompilationResult, contractName string) (*tenderly.Verification, error) {
	if contractName == "" {
		return nil, ErrArtifactNotFound
	}
	if result == nil || result.Source.Target == "" || len(result.Data.Contracts) == 0 {
		return nil, fmt.Errorf("%w: no compilation result", ErrArtifactNotFound)
	}

	target := result.Source.Target
	sourcePath := strings.Replace(target, "browser/", "/", 1)
	source := result.Source.Sources[target].Content

	var meta *solcMetadata
	for _, contracts := range result.Data.Contracts {
		compiled, ok := contracts[contractName]
		if !ok || compiled.Metadata == "" {
			continue
		}

		var m solcMetadata
		if err := json.Unmarshal([]byte(compiled.Metadata), &m); err != nil {
			return nil, fmt.Errorf("parsing metadata for %s: %w", contractName, err)
		}
		meta = &m
	}

	if meta == nil {
		return nil, fmt.Errorf("%w: no metadata for contract %s", ErrArtifactNotFound, contractName)
	}
	if meta.Compiler.Version == "" || meta.Settings.EVMVersion == "" {
		return nil, fmt.Errorf("%w: incomplete metadata for contract %s", ErrArtifactNotFound, contractName)
	}

	if err := checkCompilerVersion(meta.Compiler.Version); err != nil {
		return nil, err
	}

	return &tenderly.Verification{
		Config: tenderly.VerificationConfig{
			EVMVersion:         meta.Settings.EVMVersion,
			OptimizationsUsed:  meta.Settings.Optimizer.Enabled,
			OptimizationsCount: meta.Settings.Optimizer.Runs,
		},
		Contracts: []tenderly.ContractVerification{
			{
				Compiler: tenderly.Compiler{
					Name:    "solc",
					Version: meta.Compiler.Version,
				},
				ContractName: contractName,
				Networks:     map[string]tenderly.NetworkAddress{},
				Source:       source,
				SourcePath:   sourcePath,
			},
		},
	}, nil
}

// checkCompilerVersion rejects compiler releases below the backend's
// floor. Versions that do not parse as semver are passed through; the
// backend makes the final call.
func checkCompilerVersion(version string) error {
	base := version
	if idx := strings.IndexAny(base, "+-"); idx != -1 {
		base = base[:idx]
	}
	v := "v" + base

	if !semver.IsValid(v) {
		return nil
	}
	if semver.Compare(v, minCompilerVersion) < 0 {
		return fmt.Errorf("%w: %s is older than %s", ErrCompilerTooOld, version, strings.TrimPrefix(minCompilerVersion, "v"))
	}
	return nil
}
