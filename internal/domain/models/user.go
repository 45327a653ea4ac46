// internal/domain/models/user.go
package models

import (
	"time"
)

// SocialLinks holds optional profile links.
type SocialLinks struct {
	Github   string `bson:"github,omitempty" json:"github,omitempty"`
	Linkedin string `bson:"linkedin,omitempty" json:"linkedin,omitempty"`
	Twitter  string `bson:"twitter,omitempty" json:"twitter,omitempty"`
}

// User is the public profile of a member of the community.
//
// NOTE:
//   - ID is the account uid (shared with Account), not an ObjectID.
//   - followers/following are maintained in pairs by the follow graph.
//   - The created/joined lists hold group ids as hex strings.
type User struct {
	ID                string      `bson:"_id" json:"id"`
	Email             string      `bson:"email" json:"email,omitempty"`
	Username          string      `bson:"username" json:"username"`
	UsernameLowercase string      `bson:"username_lowercase" json:"username_lowercase"`
	ProfilePictureURL string      `bson:"profilePictureUrl" json:"profilePictureUrl"`
	Bio               string      `bson:"bio" json:"bio"`
	SocialLinks       SocialLinks `bson:"socialLinks" json:"socialLinks"`
	Skills            []string    `bson:"skills" json:"skills"`

	Followers         []string `bson:"followers" json:"followers"`
	Following         []string `bson:"following" json:"following"`
	FollowInfoPrivate bool     `bson:"followInfoPrivate" json:"followInfoPrivate"`

	CreatedStudyGroupIDs []string `bson:"createdStudyGroupIds" json:"createdStudyGroupIds"`
	JoinedStudyGroupIDs  []string `bson:"joinedStudyGroupIds" json:"joinedStudyGroupIds"`
	CreatedCohortIDs     []string `bson:"createdCohortIds" json:"createdCohortIds"`
	JoinedCohortIDs      []string `bson:"joinedCohortIds" json:"joinedCohortIds"`

	IsSubscribedToNewsletter bool `bson:"isSubscribedToNewsletter" json:"isSubscribedToNewsletter"`

	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
	LastLoginAt time.Time `bson:"lastLoginAt" json:"lastLoginAt"`
}

// IsFollowedBy reports whether uid appears in followers.
func (u User) IsFollowedBy(uid string) bool {
	for _, f := range u.Followers {
		if f == uid {
			return true
		}
	}
	return false
}

// FollowListsVisibleTo reports whether viewerID may see u's follower and
// following lists.
func (u User) FollowListsVisibleTo(viewerID string) bool {
	return !u.FollowInfoPrivate || viewerID == u.ID
}

// PublicView returns u as viewerID may see it. Email and the newsletter flag
// are owner-only, and private follow lists come back empty.
func (u User) PublicView(viewerID string) User {
	if viewerID == u.ID {
		return u
	}
	u.Email = ""
	u.IsSubscribedToNewsletter = false
	if !u.FollowListsVisibleTo(viewerID) {
		u.Followers = []string{}
		u.Following = []string{}
	}
	return u
}

// PublicViews applies PublicView to every user in us.
func PublicViews(us []User, viewerID string) []User {
	out := make([]User, 0, len(us))
	for _, u := range us {
		out = append(out, u.PublicView(viewerID))
	}
	return out
}

// UsernameReservation claims a lowercase username for one uid.
type UsernameReservation struct {
	Username string `bson:"_id" json:"username"` // lowercase
	UID      string `bson:"uid" json:"uid"`
}
