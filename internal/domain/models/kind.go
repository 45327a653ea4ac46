// internal/domain/models/kind.go
package models

import "fmt"

// Kind selects which group-like collection an operation targets.
type Kind string

const (
	KindStudyGroup Kind = "studyGroup"
	KindCohort     Kind = "cohort"
)

// Kinds lists every group-like kind, in search result order.
var Kinds = []Kind{KindStudyGroup, KindCohort}

// Collection is the Mongo collection holding records of this kind.
func (k Kind) Collection() string {
	switch k {
	case KindCohort:
		return "cohorts"
	default:
		return "studyGroups"
	}
}

// CreatedField is the UserProfile list that records groups of this kind the user created.
func (k Kind) CreatedField() string {
	if k == KindCohort {
		return "createdCohortIds"
	}
	return "createdStudyGroupIds"
}

// JoinedField is the UserProfile list that records groups of this kind the user joined.
func (k Kind) JoinedField() string {
	if k == KindCohort {
		return "joinedCohortIds"
	}
	return "joinedStudyGroupIds"
}

// PathPrefix is the client route for records of this kind ("/groups" or "/cohorts").
func (k Kind) PathPrefix() string {
	if k == KindCohort {
		return "/cohorts"
	}
	return "/groups"
}

// Link returns the client route for a single record.
func (k Kind) Link(id string) string {
	return k.PathPrefix() + "/" + id
}

// Noun is the human-readable name used in messages.
func (k Kind) Noun() string {
	if k == KindCohort {
		return "cohort"
	}
	return "study group"
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindStudyGroup || k == KindCohort
}

// FullMessage is the notification text sent to every member when a group fills up.
func (k Kind) FullMessage(name string) string {
	noun := "study group"
	if k == KindCohort {
		noun = "build cohort"
	}
	return fmt.Sprintf("Your %s \"%s\" is now full!", noun, name)
}
