package rule

import (
	id "parqueo/pkg/domain"
)

// FaultKind classifies an infraction for escalation purposes.
type FaultKind string

const (
	FaultMinor FaultKind = "MINOR"
	FaultMajor FaultKind = "MAJOR"
)

func (k FaultKind) Valid() bool {
	return k == FaultMinor || k == FaultMajor
}

// InfractionRule is a catalog entry describing a sanctionable behavior.
type InfractionRule struct {
	ID          id.RuleID `json:"id"`
	Description string    `json:"description"`
	FaultKind   FaultKind `json:"fault_kind"`
}
