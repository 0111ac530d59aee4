package ir

// Version constants for the stored schema and engine.
const (
	// SchemaVersion is the version of the summary record layout.
	SchemaVersion = "1"

	// EngineVersion is the authmetrics engine version.
	EngineVersion = "0.3.0"
)
