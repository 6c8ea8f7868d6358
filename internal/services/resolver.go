package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/joshua-takyi/invites/internal/models"
)

var kindTables = map[models.IdentifierKind]string{
	models.KindEvent: models.EventsTable,
	models.KindGuest: models.GuestsTable,
}

// IDResolver maps public identifiers (internal ids or custom ids) to internal ids.
type IDResolver struct {
	repo models.IdentityRepo
}

func NewIDResolver(repo models.IdentityRepo) *IDResolver {
	return &IDResolver{repo: repo}
}

// Resolve tries the internal id column first, then custom_id. No fuzzy
// matching: anything else is a *models.ResolutionError.
func (r *IDResolver) Resolve(ctx context.Context, kind models.IdentifierKind, publicID string) (string, error) {
	table, ok := kindTables[kind]
	if !ok {
		return "", &models.ResolutionError{Kind: kind, PublicID: publicID}
	}

	publicID = strings.TrimSpace(publicID)
	if publicID == "" {
		return "", &models.ResolutionError{Kind: kind, PublicID: publicID}
	}

	// The id column is a uuid; comparing it against arbitrary text would be a
	// query error rather than a miss.
	if _, err := uuid.Parse(publicID); err == nil {
		ids, err := r.repo.MatchIDs(ctx, table, "id", publicID)
		if err != nil {
			return "", err
		}
		if len(ids) == 1 {
			return ids[0], nil
		}
	}

	ids, err := r.repo.MatchIDs(ctx, table, "custom_id", publicID)
	if err != nil {
		return "", err
	}
	switch len(ids) {
	case 0:
		return "", &models.ResolutionError{Kind: kind, PublicID: publicID}
	case 1:
		return ids[0], nil
	default:
		return "", &models.ResolutionError{Kind: kind, PublicID: publicID, Ambiguous: true}
	}
}
