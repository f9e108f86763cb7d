package models

// Principal is a login identity held by the identity store. The pipeline
// only needs enough of it to enrich audit entries.
type Principal struct {
	ID          string
	Email       string
	DisplayName string
	Disabled    bool
}
