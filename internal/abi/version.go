package abi

// Version constants for the generator and its runtime support package.
const (
	// GeneratorVersion is the genfut version recorded in manifests and the ledger.
	GeneratorVersion = "0.1.0"

	// RuntimeModule is the import path generated packages use for runtime support.
	RuntimeModule = "github.com/roach88/genfut"

	// RuntimeImport is the import path of the runtime package itself.
	RuntimeImport = RuntimeModule + "/fut"
)
