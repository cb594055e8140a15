package permissions

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"parley/pkg/apperr"
	"parley/pkg/models"
)

// Directory is the record access the calculator needs.
type Directory interface {
	FetchServer(ctx context.Context, id string) (*models.Server, error)
	FetchMembers(ctx context.Context, serverID string, userIDs []string) ([]models.Member, error)
}

// Calculator resolves a user's capability set in a channel from the
// channel kind, server defaults, role overrides, and channel overrides.
type Calculator struct {
	dir Directory
}

func NewCalculator(dir Directory) *Calculator {
	return &Calculator{dir: dir}
}

// For computes the capability bits userID holds in ch.
func (c *Calculator) For(ctx context.Context, userID string, ch *models.Channel) (uint64, error) {
	switch ch.Kind {
	case models.ChannelSavedMessages:
		if ch.User == userID {
			return All, nil
		}
		return 0, nil

	case models.ChannelDirectMessage:
		if ch.HasRecipient(userID) {
			return participant, nil
		}
		return 0, nil

	case models.ChannelGroup:
		if !ch.HasRecipient(userID) {
			return 0, nil
		}
		if ch.User == userID {
			return All, nil
		}
		return participant, nil

	case models.ChannelText, models.ChannelVoice:
		return c.serverChannel(ctx, userID, ch)
	}
	return 0, nil
}

func (c *Calculator) serverChannel(ctx context.Context, userID string, ch *models.Channel) (uint64, error) {
	server, err := c.dir.FetchServer(ctx, ch.Server)
	if err != nil {
		return 0, apperr.Internal(err)
	}
	if server.Owner == userID {
		return All, nil
	}

	members, err := c.dir.FetchMembers(ctx, ch.Server, []string{userID})
	if err != nil {
		return 0, apperr.Internal(err)
	}
	if len(members) == 0 {
		return 0, nil
	}
	member := members[0]

	perms := server.DefaultPermissions

	// Role overrides apply lowest authority first so the strongest
	// role has the final word; smaller rank means more authority.
	roles := make([]string, 0, len(member.Roles))
	for _, rid := range member.Roles {
		if server.HasRole(rid) {
			roles = append(roles, rid)
		}
	}
	sort.Slice(roles, func(i, j int) bool {
		return server.Roles[roles[i]].Rank > server.Roles[roles[j]].Rank
	})
	for _, rid := range roles {
		o := server.Roles[rid].Permissions
		perms = (perms | o.Allow) &^ o.Deny
	}

	if ch.DefaultPermissions != nil {
		perms = (perms | ch.DefaultPermissions.Allow) &^ ch.DefaultPermissions.Deny
	}
	for _, rid := range roles {
		if o, ok := ch.RolePermissions[rid]; ok {
			perms = (perms | o.Allow) &^ o.Deny
		}
	}
	return perms, nil
}

// Require fails with MissingPermission when userID lacks cap in ch.
func (c *Calculator) Require(ctx context.Context, userID string, ch *models.Channel, cap uint64) error {
	perms, err := c.For(ctx, userID, ch)
	if err != nil {
		return err
	}
	if perms&cap == 0 {
		return apperr.MissingPermission(Name(cap))
	}
	return nil
}

// CanSeeChannel reports whether userID holds ViewChannel in ch.
func (c *Calculator) CanSeeChannel(ctx context.Context, userID string, ch *models.Channel) (bool, error) {
	perms, err := c.For(ctx, userID, ch)
	if err != nil {
		return false, err
	}
	return perms&ViewChannel != 0, nil
}

// visibilityBatch bounds concurrent capability checks per filter call.
const visibilityBatch = 8

// FilterVisible keeps the users who can see ch, preserving input
// order. Checks run concurrently in bounded batches.
func (c *Calculator) FilterVisible(ctx context.Context, ch *models.Channel, userIDs []string) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	visible := make([]bool, len(userIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(visibilityBatch)
	for i, uid := range userIDs {
		i, uid := i, uid
		g.Go(func() error {
			ok, err := c.CanSeeChannel(gctx, uid, ch)
			if err != nil {
				return err
			}
			visible[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(userIDs))
	for i, uid := range userIDs {
		if visible[i] {
			out = append(out, uid)
		}
	}
	return out, nil
}
