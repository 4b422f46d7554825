package transmissions

import "kpiconsole/internal/domain/kpi"

type Outcome string

const (
	OutcomeApproved        Outcome = "approved"
	OutcomeOverridden      Outcome = "overridden"
	OutcomeRejected        Outcome = "rejected"
	OutcomeAlreadyResolved Outcome = "already_resolved"
)

// Resolution describes what a review call did. A call that lost the race
// for its transmission reports OutcomeAlreadyResolved and carries nothing
// else.
type Resolution struct {
	Outcome      Outcome           `json:"outcome"`
	Transmission *kpi.Transmission `json:"transmission,omitempty"`
	Validated    *kpi.SystemStats  `json:"validated,omitempty"`
}

// Reviewer identifies the user resolving a transmission.
type Reviewer struct {
	ID   string
	Name string
}

type Submitter struct {
	ID         string
	Name       string
	Department string
}
