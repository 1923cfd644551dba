// Package persistence stores the exported brain blob. The trading loop
// treats save/load failures as reportable results, never as fatal errors.
package persistence

// SaveResult reports a save outcome without raising an error into the
// trading loop.
type SaveResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Client is the brain persistence collaborator.
type Client interface {
	// SaveBrain persists the exported brain state.
	SaveBrain(state string) SaveResult

	// LoadBrain returns the last saved state, or false when absent.
	LoadBrain() (string, bool)
}
