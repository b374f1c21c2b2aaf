package tenderly

// Project is a remote project owned by the authenticated user.
type Project struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Slug    string       `json:"slug"`
	OwnerID string       `json:"owner_id"`
	Owner   ProjectOwner `json:"owner"`
}

// ProjectOwner identifies the user or organization that owns a project.
type ProjectOwner struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Type     string `json:"type"` // "user" or "organization"
}

// ProjectRef scopes a request to a project namespace. It is passed
// explicitly to every project-scoped call; the client holds no project
// state of its own.
type ProjectRef struct {
	Username string
	Slug     string
}

// IsZero reports whether the ref is the canonical "no project selected"
// state (empty slug and owner).
func (r ProjectRef) IsZero() bool {
	return r.Username == "" && r.Slug == ""
}

// Network is a supported chain.
type Network struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Account is a contract previously verified and stored under a project.
type Account struct {
	ID          string   `json:"id"`
	Contract    Contract `json:"contract"`
	Project     Project  `json:"project"`
	DisplayName string   `json:"display_name"`
}

// Name returns the display name, falling back to the contract name.
func (a Account) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Contract.ContractName
}

// Contract holds the on-chain identity and stored data of an account.
type Contract struct {
	ID            string       `json:"id"`
	ContractID    string       `json:"contract_id"`
	NetworkID     string       `json:"network_id"`
	Address       string       `json:"address"`
	ContractName  string       `json:"contract_name"`
	NumberOfFiles int          `json:"number_of_files"`
	Data          ContractData `json:"data"`
}

// ContractData wraps the stored source files of a contract.
type ContractData struct {
	ContractInfo []ContractInfo `json:"contract_info"`
}

// ContractInfo is one source file belonging to a stored contract.
type ContractInfo struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Path   string `json:"path"`
	Source string `json:"source"`
}

// Verification is a contract verification submission.
type Verification struct {
	Config    VerificationConfig     `json:"config"`
	Contracts []ContractVerification `json:"contracts"`
}

// VerificationConfig carries the compiler settings the contract was
// built with.
type VerificationConfig struct {
	OptimizationsUsed  bool   `json:"optimizations_used"`
	OptimizationsCount int    `json:"optimizations_count"`
	EVMVersion         string `json:"evm_version"`
}

// ContractVerification is one contract entry inside a Verification.
type ContractVerification struct {
	ContractName string                    `json:"contractName"`
	Source       string                    `json:"source"`
	SourcePath   string                    `json:"sourcePath"`
	Compiler     Compiler                  `json:"compiler"`
	Networks     map[string]NetworkAddress `json:"networks"`
}

// Compiler identifies the compiler a contract was built with.
type Compiler struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// NetworkAddress maps a network entry to a deployed address. Links are
// always empty; link resolution is not implemented.
type NetworkAddress struct {
	Address string            `json:"address"`
	Links   map[string]string `json:"links"`
}

// BytecodeMismatchError describes a semantic verification rejection
// returned inside an otherwise successful response.
type BytecodeMismatchError struct {
	ContractID string `json:"contract_id"`
	Expected   string `json:"expected"`
	Got        string `json:"got"`
}

// Billing is the project-level billing/entitlement snapshot.
type Billing struct {
	Includes BillingIncludes `json:"includes"`
}

// BillingIncludes lists the entitlements included in the project plan.
type BillingIncludes struct {
	PrivateContracts bool `json:"private_contracts"`
}
