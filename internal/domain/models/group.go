// internal/domain/models/group.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxGroupMembers is the hard ceiling on memberIds for study groups and cohorts.
const MaxGroupMembers = 25

// Group is a study group or a cohort. Both kinds share this shape and live in
// separate collections (see Kind).
//
// NOTE:
//   - Membership is embedded as memberIds (user uids), not a join collection.
//   - Field names are shared with records written by the original web client
//     and must not change.
type Group struct {
	ID            primitive.ObjectID `bson:"_id" json:"id"`
	Name          string             `bson:"name" json:"name"`
	NameLowercase string             `bson:"name_lowercase" json:"name_lowercase"`
	Topic         string             `bson:"topic" json:"topic"`
	Commitment    string             `bson:"commitment" json:"commitment"`
	Description   string             `bson:"description" json:"description"`
	GithubURL     string             `bson:"githubUrl,omitempty" json:"githubUrl,omitempty"` // cohorts only
	CreatorID     string             `bson:"creatorId" json:"creatorId"`
	MemberIDs     []string           `bson:"memberIds" json:"memberIds"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// IsFull reports whether the group has reached MaxGroupMembers.
func (g Group) IsFull() bool {
	return len(g.MemberIDs) >= MaxGroupMembers
}

// HasMember reports whether uid is in memberIds.
func (g Group) HasMember(uid string) bool {
	for _, id := range g.MemberIDs {
		if id == uid {
			return true
		}
	}
	return false
}
