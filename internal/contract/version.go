package contract

// Version constants for the contract layer.
const (
	// ContractVersion identifies the envelope wire format.
	ContractVersion = "1"

	// EngineVersion is the contract engine release.
	EngineVersion = "0.1.0"
)
