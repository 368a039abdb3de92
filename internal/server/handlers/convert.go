package handlers

import (
	"github.com/yallaspeak/syncd/internal/models"
	"github.com/yallaspeak/syncd/pkg/api"
)

// Конвертация между wire типами pkg/api и внутренними моделями.
// owner_id никогда не берется из тела запроса — только из токена.

func toModelChange(ownerID string, c api.ChangeSet) *models.ChangeSet {
	return &models.ChangeSet{
		UpdatedAt:  c.UpdatedAt,
		ClientTime: c.ClientTimestamp,
		EntityType: c.EntityType,
		RecordID:   c.RecordID,
		OwnerID:    ownerID,
		Operation:  c.Operation,
		Payload:    c.Payload,
	}
}

func toModelChanges(ownerID string, changes []api.ChangeSet) []*models.ChangeSet {
	out := make([]*models.ChangeSet, 0, len(changes))
	for _, c := range changes {
		out = append(out, toModelChange(ownerID, c))
	}
	return out
}

func toAPIChange(c *models.ChangeSet) api.ChangeSet {
	return api.ChangeSet{
		UpdatedAt:       c.UpdatedAt,
		ClientTimestamp: c.ClientTime,
		EntityType:      c.EntityType,
		RecordID:        c.RecordID,
		Operation:       c.Operation,
		Payload:         c.Payload,
	}
}

func toAPIChanges(changes []*models.ChangeSet) []api.ChangeSet {
	out := make([]api.ChangeSet, 0, len(changes))
	for _, c := range changes {
		out = append(out, toAPIChange(c))
	}
	return out
}

func toAPIConflicts(conflicts []*models.Conflict) []api.Conflict {
	out := make([]api.Conflict, 0, len(conflicts))
	for _, c := range conflicts {
		out = append(out, api.Conflict{
			DetectedAt:   c.DetectedAt,
			EntityType:   c.EntityType,
			RecordID:     c.RecordID,
			ServerChange: toAPIChange(c.ServerChange),
			ClientChange: toAPIChange(c.ClientChange),
		})
	}
	return out
}
