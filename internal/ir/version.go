package ir

// Version constants for the type graph and generator.
const (
	// PlanVersion is the routine-description schema version.
	PlanVersion = "1"

	// GeneratorVersion is the idlc generator version.
	GeneratorVersion = "0.1.0"
)
