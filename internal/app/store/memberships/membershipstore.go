// internal/app/store/memberships/membershipstore.go
package membershipstore

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mlanders/datahub/internal/domain/models"
)

// Store persists membership records and enforces the lifecycle rules:
// only the transitions invited->member, invited->revoked, member->revoked,
// and revoked->invited are legal, and at most one active (invited or
// member) row may exist per (member, organization, product scope). The
// second rule is backed by a partial unique index, so it holds under
// concurrent writers too.
type Store struct {
	c        *mongo.Collection
	accounts *mongo.Collection
}

var (
	ErrNotFound                     = errors.New("membership not found")
	ErrDuplicateActiveMembership    = errors.New("an active membership already exists for this member and scope")
	ErrIllegalTransition            = errors.New("membership state transition is not allowed")
	ErrMemberNotIndividual          = errors.New("memberships can only be granted to individual accounts")
	ErrGrantorNotOrganization       = errors.New("memberships can only be granted by organization accounts")
	errTransitionRetriesExhausted   = errors.New("membership transition kept conflicting; giving up")
)

// transitionRetries bounds the optimistic-update loop. Conflicts are rare
// (two admins racing on the same row), so a small bound is plenty.
const transitionRetries = 3

func New(db *mongo.Database) *Store {
	return &Store{
		c:        db.Collection("memberships"),
		accounts: db.Collection("accounts"),
	}
}

// Invite creates a membership in the invited state after checking that the
// member is an individual and the grantor an organization. A revoked row
// for the same scope is left in place as history; the new invite is a new
// row.
func (s *Store) Invite(ctx context.Context, accountID, orgID, productID string, role models.MembershipRole) (models.Membership, error) {
	var member models.Account
	if err := s.accounts.FindOne(ctx, bson.M{"account_id": accountID}).Decode(&member); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Membership{}, ErrNotFound
		}
		return models.Membership{}, err
	}
	if member.Kind != models.AccountKindIndividual {
		return models.Membership{}, ErrMemberNotIndividual
	}

	var org models.Account
	if err := s.accounts.FindOne(ctx, bson.M{"account_id": orgID}).Decode(&org); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Membership{}, ErrNotFound
		}
		return models.Membership{}, err
	}
	if org.Kind != models.AccountKindOrganization {
		return models.Membership{}, ErrGrantorNotOrganization
	}

	m := models.Membership{
		MembershipID:        uuid.NewString(),
		AccountID:           accountID,
		MembershipAccountID: orgID,
		ProductID:           productID,
		Role:                role,
		State:               models.MembershipInvited,
		StateChanged:        time.Now().UTC(),
	}
	if _, err := s.c.InsertOne(ctx, m); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Membership{}, ErrDuplicateActiveMembership
		}
		return models.Membership{}, err
	}
	return m, nil
}

func (s *Store) GetByID(ctx context.Context, membershipID string) (models.Membership, error) {
	var m models.Membership
	err := s.c.FindOne(ctx, bson.M{"membership_id": membershipID}).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return models.Membership{}, ErrNotFound
	}
	if err != nil {
		return models.Membership{}, err
	}
	return m, nil
}

// Accept moves an invited membership to member.
func (s *Store) Accept(ctx context.Context, membershipID string) (models.Membership, error) {
	return s.transition(ctx, membershipID, models.MembershipMember)
}

// Reject revokes an invitation. Same terminal state as Revoke; who may
// call which is the authorization layer's concern.
func (s *Store) Reject(ctx context.Context, membershipID string) (models.Membership, error) {
	return s.transition(ctx, membershipID, models.MembershipRevoked)
}

// Revoke moves an invited or member membership to revoked.
func (s *Store) Revoke(ctx context.Context, membershipID string) (models.Membership, error) {
	return s.transition(ctx, membershipID, models.MembershipRevoked)
}

// Reinvite moves a revoked membership back to invited. Like every other
// transition it touches only state and state_changed; role changes go
// through UpdateRole. It can conflict with a newer active row for the same
// scope (created since the revoke), which surfaces as
// ErrDuplicateActiveMembership.
func (s *Store) Reinvite(ctx context.Context, membershipID string) (models.Membership, error) {
	for attempt := 0; attempt < transitionRetries; attempt++ {
		m, err := s.GetByID(ctx, membershipID)
		if err != nil {
			return models.Membership{}, err
		}
		if !m.State.CanTransitionTo(models.MembershipInvited) {
			return models.Membership{}, ErrIllegalTransition
		}

		res, err := s.c.UpdateOne(ctx, bson.M{
			"membership_id": membershipID,
			"state":         m.State,
		}, bson.M{"$set": bson.M{
			"state":         models.MembershipInvited,
			"state_changed": time.Now().UTC(),
		}})
		if err != nil {
			// The partial unique index fires if another active row for the
			// same scope appeared since the revoke.
			if wafflemongo.IsDup(err) {
				return models.Membership{}, ErrDuplicateActiveMembership
			}
			return models.Membership{}, err
		}
		if res.MatchedCount == 0 {
			// Lost the race on the state precondition; re-read and retry.
			continue
		}
		return s.GetByID(ctx, membershipID)
	}
	return models.Membership{}, errTransitionRetriesExhausted
}

// UpdateRole changes the role on an active membership without touching its
// state.
func (s *Store) UpdateRole(ctx context.Context, membershipID string, role models.MembershipRole) (models.Membership, error) {
	res, err := s.c.UpdateOne(ctx, bson.M{
		"membership_id": membershipID,
		"state":         bson.M{"$in": bson.A{models.MembershipInvited, models.MembershipMember}},
	}, bson.M{"$set": bson.M{"role": role}})
	if err != nil {
		return models.Membership{}, err
	}
	if res.MatchedCount == 0 {
		m, getErr := s.GetByID(ctx, membershipID)
		if getErr != nil {
			return models.Membership{}, getErr
		}
		if m.State == models.MembershipRevoked {
			return models.Membership{}, ErrIllegalTransition
		}
		return models.Membership{}, ErrNotFound
	}
	return s.GetByID(ctx, membershipID)
}

// transition applies a state change with the current state as an optimistic
// precondition, retrying a bounded number of times when a concurrent writer
// moves the row first.
func (s *Store) transition(ctx context.Context, membershipID string, next models.MembershipState) (models.Membership, error) {
	for attempt := 0; attempt < transitionRetries; attempt++ {
		m, err := s.GetByID(ctx, membershipID)
		if err != nil {
			return models.Membership{}, err
		}
		if !m.State.CanTransitionTo(next) {
			return models.Membership{}, ErrIllegalTransition
		}

		res, err := s.c.UpdateOne(ctx, bson.M{
			"membership_id": membershipID,
			"state":         m.State,
		}, bson.M{"$set": bson.M{
			"state":         next,
			"state_changed": time.Now().UTC(),
		}})
		if err != nil {
			return models.Membership{}, err
		}
		if res.MatchedCount == 0 {
			continue
		}
		m.State = next
		return m, nil
	}
	return models.Membership{}, errTransitionRetriesExhausted
}

// ListByAccount returns a member's memberships, newest state change first.
// Pass onlyActive to exclude revoked history.
func (s *Store) ListByAccount(ctx context.Context, accountID string, onlyActive bool) ([]models.Membership, error) {
	filter := bson.M{"account_id": accountID}
	if onlyActive {
		filter["state"] = bson.M{"$in": bson.A{models.MembershipInvited, models.MembershipMember}}
	}
	return s.list(ctx, filter)
}

// ListByOrganization returns an organization's memberships across all
// product scopes.
func (s *Store) ListByOrganization(ctx context.Context, orgID string, onlyActive bool) ([]models.Membership, error) {
	filter := bson.M{"membership_account_id": orgID}
	if onlyActive {
		filter["state"] = bson.M{"$in": bson.A{models.MembershipInvited, models.MembershipMember}}
	}
	return s.list(ctx, filter)
}

// ListByProduct returns the memberships scoped to one product.
func (s *Store) ListByProduct(ctx context.Context, orgID, productID string, onlyActive bool) ([]models.Membership, error) {
	filter := bson.M{"membership_account_id": orgID, "product_id": productID}
	if onlyActive {
		filter["state"] = bson.M{"$in": bson.A{models.MembershipInvited, models.MembershipMember}}
	}
	return s.list(ctx, filter)
}

func (s *Store) list(ctx context.Context, filter bson.M) ([]models.Membership, error) {
	cur, err := s.c.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var memberships []models.Membership
	if err := cur.All(ctx, &memberships); err != nil {
		return nil, err
	}
	return memberships, nil
}
