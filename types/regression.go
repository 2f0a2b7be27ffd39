package types

// Regression is a group that passed in the previous run over the same corpus
// and no longer does.
type Regression struct {
	Group    string      `json:"group"`
	Previous GroupStatus `json:"previous"`
	Current  GroupStatus `json:"current"`
}
