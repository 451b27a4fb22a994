// Package usersink forwards activity events to a go-users ActivitySink so
// predictions and sign-ins appear in the user activity feed.
package usersink

import (
	"context"
	"strings"
	"time"

	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"

	"github.com/goliatone/go-drivalyze/pkg/activity"
)

// Hook adapts activity events to a go-users ActivitySink.
type Hook struct {
	Sink usertypes.ActivitySink
	// Tenant is stamped on every record. Empty means no tenant.
	Tenant string
}

// Notify maps the event into an ActivityRecord and forwards it to the sink.
// User IDs that are not UUIDs are kept in the record data under "user_ref".
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}
	normalized := activity.NormalizeEvent(event)
	if !normalized.Routable() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	data := make(map[string]any, len(normalized.Metadata)+1)
	for key, value := range normalized.Metadata {
		data[key] = value
	}
	userID, ok := parseUUID(normalized.UserID)
	if !ok && normalized.UserID != "" {
		data["user_ref"] = normalized.UserID
	}
	actorID, _ := parseUUID(normalized.ActorID)
	tenantID, _ := parseUUID(h.Tenant)

	record := usertypes.ActivityRecord{
		ActorID:    actorID,
		UserID:     userID,
		TenantID:   tenantID,
		Verb:       normalized.Verb,
		ObjectType: normalized.ObjectType,
		ObjectID:   normalized.ObjectID,
		Channel:    normalized.Channel,
		OccurredAt: normalized.OccurredAt,
	}
	if len(data) > 0 {
		record.Data = data
	}
	if record.OccurredAt.IsZero() {
		record.OccurredAt = time.Now()
	}
	return h.Sink.Log(ctx, record)
}

func parseUUID(input string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(input))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
