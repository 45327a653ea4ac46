// internal/app/store/memberships/membershipstore.go
//
// Package membershipstore owns the multi-document rules for study groups and
// cohorts: create-with-dedup, join-with-capacity and the one-time
// notification fan-out when a group fills up. Both kinds share one
// implementation, selected by models.Kind.
package membershipstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	groupstore "github.com/dalemusser/studyhub/internal/app/store/groups"
	notificationstore "github.com/dalemusser/studyhub/internal/app/store/notifications"
	userstore "github.com/dalemusser/studyhub/internal/app/store/users"
	"github.com/dalemusser/studyhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/studyhub/internal/app/system/inputval"
	"github.com/dalemusser/studyhub/internal/app/system/txn"
	"github.com/dalemusser/studyhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var (
	// ErrDuplicateCandidateExists means an open group with the same topic and
	// commitment already exists; the caller should join it instead.
	ErrDuplicateCandidateExists = errors.New("an open group with this topic and commitment already exists")
	ErrAlreadyMember            = errors.New("user is already a member of this group")
	ErrGroupFull                = errors.New("group is full")
	ErrGroupNotFound            = errors.New("group not found")
	// ErrUserNotFound means the creator or joiner has no profile.
	ErrUserNotFound = errors.New("user profile not found")
	// ErrJoinConflict is returned when concurrent joins kept changing the
	// member list and every attempt lost the race.
	ErrJoinConflict = errors.New("group membership changed concurrently; please try again")

	errMemberCountChanged = errors.New("member count changed")
)

// maxJoinAttempts bounds re-evaluation when the conditional member update loses a race.
const maxJoinAttempts = 3

// Publisher is told which users received new notifications after a commit.
type Publisher interface {
	Publish(userIDs ...string)
}

// Service runs membership operations against one database.
type Service struct {
	db  *mongo.Database
	log *zap.Logger
	pub Publisher
}

// New returns a Service. pub may be nil.
func New(db *mongo.Database, logger *zap.Logger, pub Publisher) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, log: logger, pub: pub}
}

// CreateInput is the request to create a group. Topic may be models.TopicOther,
// in which case CustomTopic is used. Commitment is a key or a stored label.
type CreateInput struct {
	Kind        models.Kind
	Name        string
	Topic       string
	CustomTopic string
	Commitment  string
	Description string
	GithubURL   string
	CreatorID   string
}

type createFields struct {
	Name        string `validate:"required,max=75" label:"Group name"`
	Topic       string `validate:"required,max=50" label:"Topic"`
	Commitment  string `validate:"required" label:"Commitment"`
	Description string `validate:"max=500" label:"Description"`
	GithubURL   string `validate:"omitempty,max=150,httpurl" label:"GitHub URL"`
	CreatorID   string `validate:"required" label:"Creator"`
}

// CreateGroup validates the input, refuses when an open group with the same
// topic and commitment exists, and otherwise inserts the group and records it
// on the creator's profile in one atomic step.
//
// The duplicate check runs before the write and is not serialized with other
// creates; two simultaneous creates may both succeed.
func (s *Service) CreateGroup(ctx context.Context, in CreateInput) (primitive.ObjectID, error) {
	if !in.Kind.Valid() {
		return primitive.NilObjectID, inputval.Errorf("Unknown group kind.")
	}

	commitment, _ := models.NormalizeCommitment(in.Commitment)
	fields := createFields{
		Name:        strings.TrimSpace(in.Name),
		Topic:       models.ResolveTopic(in.Topic, in.CustomTopic),
		Commitment:  commitment,
		Description: htmlsanitize.StripTags(in.Description),
		GithubURL:   strings.TrimSpace(in.GithubURL),
		CreatorID:   strings.TrimSpace(in.CreatorID),
	}
	if in.Kind != models.KindCohort {
		fields.GithubURL = ""
	}
	if err := inputval.Validate(fields).Err(); err != nil {
		return primitive.NilObjectID, err
	}

	groups := groupstore.New(s.db, in.Kind)

	existing, err := groups.FindByTopicCommitment(ctx, fields.Topic, fields.Commitment)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("find candidates: %w", err)
	}
	for _, g := range existing {
		if !g.IsFull() {
			return primitive.NilObjectID, ErrDuplicateCandidateExists
		}
	}

	desc := fields.Description
	if desc == "" {
		desc = "A new group for " + fields.Topic
	}
	g := models.Group{
		ID:            primitive.NewObjectID(),
		Name:          fields.Name,
		NameLowercase: strings.ToLower(fields.Name),
		Topic:         fields.Topic,
		Commitment:    fields.Commitment,
		Description:   desc,
		GithubURL:     fields.GithubURL,
		CreatorID:     fields.CreatorID,
		MemberIDs:     []string{fields.CreatorID},
		CreatedAt:     time.Now().UTC(),
	}

	users := userstore.New(s.db)
	err = txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		// Nothing may be written before the profile is known to exist.
		if err := requireProfile(ctx, users, g.CreatorID); err != nil {
			return err
		}
		if err := groups.Insert(ctx, g); err != nil {
			return fmt.Errorf("insert group: %w", err)
		}
		if err := users.AddToList(ctx, g.CreatorID, in.Kind.CreatedField(), g.ID.Hex()); err != nil {
			return profileErr("record created group", err)
		}
		return nil
	}, userKey(g.CreatorID))
	if err != nil {
		return primitive.NilObjectID, err
	}

	s.log.Info("group created",
		zap.String("kind", string(in.Kind)),
		zap.String("group_id", g.ID.Hex()),
		zap.String("creator_id", g.CreatorID),
		zap.String("topic", g.Topic))
	return g.ID, nil
}

// JoinResult describes a successful join.
type JoinResult struct {
	Group models.Group // state after the join
	// BecameFull is true only for the join that took the group to MaxGroupMembers.
	BecameFull bool
	// Notified lists the recipients of the "now full" notification.
	Notified []string
}

// JoinGroup adds userID to the group and the group to the user's joined list.
// When this join makes the group full, every member (including the joiner)
// gets one notification, written in the same atomic step.
func (s *Service) JoinGroup(ctx context.Context, kind models.Kind, groupID primitive.ObjectID, userID string) (JoinResult, error) {
	if !kind.Valid() {
		return JoinResult{}, inputval.Errorf("Unknown group kind.")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return JoinResult{}, inputval.Errorf("User is required.")
	}

	groups := groupstore.New(s.db, kind)
	users := userstore.New(s.db)
	notes := notificationstore.New(s.db)

	var res JoinResult
	attempt := func(ctx context.Context) error {
		res = JoinResult{}

		g, err := groups.GetByID(ctx, groupID)
		if errors.Is(err, groupstore.ErrNotFound) {
			return ErrGroupNotFound
		}
		if err != nil {
			return err
		}
		if g.HasMember(userID) {
			return ErrAlreadyMember
		}
		if g.IsFull() {
			return ErrGroupFull
		}

		if err := requireProfile(ctx, users, userID); err != nil {
			return err
		}

		observed := len(g.MemberIDs)
		applied, err := groups.AddMember(ctx, groupID, userID, observed)
		if err != nil {
			return fmt.Errorf("add member: %w", err)
		}
		if !applied {
			return errMemberCountChanged
		}
		if err := users.AddToList(ctx, userID, kind.JoinedField(), groupID.Hex()); err != nil {
			return profileErr("record joined group", err)
		}

		g.MemberIDs = append(g.MemberIDs, userID)
		res.Group = g

		if observed+1 == models.MaxGroupMembers {
			recipients := append([]string(nil), g.MemberIDs...)
			batch := notificationstore.Build(recipients, kind.FullMessage(g.Name), kind.Link(groupID.Hex()), time.Now())
			if err := notes.InsertMany(ctx, batch); err != nil {
				return fmt.Errorf("notify members: %w", err)
			}
			res.BecameFull = true
			res.Notified = recipients
		}
		return nil
	}

	var err error
	for i := 0; i < maxJoinAttempts; i++ {
		err = txn.Run(ctx, s.db, s.log, attempt, groupKey(kind, groupID), userKey(userID))
		if !errors.Is(err, errMemberCountChanged) {
			break
		}
		s.log.Debug("join lost a race; re-evaluating",
			zap.String("group_id", groupID.Hex()),
			zap.Int("attempt", i+1))
	}
	if errors.Is(err, errMemberCountChanged) {
		return JoinResult{}, ErrJoinConflict
	}
	if err != nil {
		return JoinResult{}, err
	}

	if res.BecameFull {
		s.log.Info("group became full",
			zap.String("kind", string(kind)),
			zap.String("group_id", groupID.Hex()),
			zap.Int("notified", len(res.Notified)))
		if s.pub != nil {
			s.pub.Publish(res.Notified...)
		}
	}
	return res, nil
}

// FindCandidates returns open groups with exactly this topic and commitment
// that the caller is not already in. topic must already be resolved (no "Other").
func (s *Service) FindCandidates(ctx context.Context, kind models.Kind, topic, commitment, excludeUserID string) ([]models.Group, error) {
	topic = strings.TrimSpace(topic)
	label, ok := models.NormalizeCommitment(commitment)
	if topic == "" || !ok {
		return []models.Group{}, nil
	}
	all, err := groupstore.New(s.db, kind).FindByTopicCommitment(ctx, topic, label)
	if err != nil {
		return nil, err
	}
	out := make([]models.Group, 0, len(all))
	for _, g := range all {
		if g.IsFull() || (excludeUserID != "" && g.HasMember(excludeUserID)) {
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

// GetGroup loads one group.
func (s *Service) GetGroup(ctx context.Context, kind models.Kind, id primitive.ObjectID) (models.Group, error) {
	g, err := groupstore.New(s.db, kind).GetByID(ctx, id)
	if errors.Is(err, groupstore.ErrNotFound) {
		return models.Group{}, ErrGroupNotFound
	}
	return g, err
}

// ListGroups returns groups newest first, starting after before when it is set.
func (s *Service) ListGroups(ctx context.Context, kind models.Kind, before primitive.ObjectID, limit int64) ([]models.Group, error) {
	return groupstore.New(s.db, kind).List(ctx, before, limit)
}

// ListGroupsForMember returns groups whose member list contains uid.
func (s *Service) ListGroupsForMember(ctx context.Context, kind models.Kind, uid string) ([]models.Group, error) {
	return groupstore.New(s.db, kind).ListForMember(ctx, uid)
}

// GroupMembers loads member profiles in join order, capped at userstore.MaxBatch.
func (s *Service) GroupMembers(ctx context.Context, g models.Group) ([]models.User, error) {
	return userstore.New(s.db).GetMany(ctx, g.MemberIDs)
}

func requireProfile(ctx context.Context, users *userstore.Store, uid string) error {
	if _, err := users.GetByID(ctx, uid); err != nil {
		return profileErr("load profile", err)
	}
	return nil
}

func profileErr(op string, err error) error {
	if errors.Is(err, userstore.ErrNotFound) {
		return ErrUserNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func groupKey(kind models.Kind, id primitive.ObjectID) string {
	return kind.Collection() + ":" + id.Hex()
}

func userKey(uid string) string {
	return "users:" + uid
}
