package simulation

// Run is a live simulation as seen by the registry and the CLI
type Run interface {
	// ID returns the unique run identifier
	ID() string

	// State returns the lifecycle state name
	State() string

	// Progress returns completion as a percentage
	Progress() float64

	// Stop requests a cooperative shutdown
	Stop()
}
