// internal/domain/models/feedback.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxFeedbackLength caps one feedback message, in characters.
const MaxFeedbackLength = 2000

// Feedback is a free-text message a member sent about the site.
type Feedback struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	Feedback  string             `bson:"feedback" json:"feedback"`
	UserID    string             `bson:"userId" json:"userId"`
	Username  string             `bson:"username" json:"username"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
