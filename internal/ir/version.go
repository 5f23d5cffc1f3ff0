package ir

// Version constants for the compiled program and trace encoding.
const (
	// TraceVersion is the canonical event encoding version. Bump it when
	// EncodeEvent changes; recorded trace hashes are only comparable within
	// one version.
	TraceVersion = "1"

	// EngineVersion is the sprig engine version.
	EngineVersion = "0.1.0"
)
