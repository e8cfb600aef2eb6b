package ir

// Version constants.
const (
	// DumpVersion is the schema version of canonical tree dumps.
	DumpVersion = "1"

	// EngineVersion is the statetree engine version.
	EngineVersion = "0.1.0"
)
