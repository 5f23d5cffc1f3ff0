package engine

// Stats counts the policy outcomes of a build.
type Stats struct {
	// Emitted is the number of objects passed to the callback.
	Emitted int `json:"emitted"`

	// SizeRejected counts terminals outside the size window.
	SizeRejected int `json:"size_rejected"`

	// DepthExceeded counts references not built because their rule group
	// was already at maxdepth.
	DepthExceeded int `json:"depth_exceeded"`

	// Fallbacks counts fallback rules built in place of such references.
	Fallbacks int `json:"fallbacks"`

	// RulesBuilt counts rule bodies entered.
	RulesBuilt int `json:"rules_built"`

	// MaxDepth is the deepest recursion any built rule group reached.
	MaxDepth int `json:"max_depth"`

	// CapReached is set when the build ended at maxobjects.
	CapReached bool `json:"cap_reached"`

	// Stopped is set when the callback or context ended the build.
	Stopped bool `json:"stopped"`
}
