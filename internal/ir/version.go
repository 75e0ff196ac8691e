package ir

// Version constants stamped on journal records.
const (
	// IRVersion is the record schema version.
	IRVersion = "1"

	// EngineVersion is the atomgraph engine version.
	EngineVersion = "0.1.0"
)
