package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"homebase/internal/models"
)

// Writer appends task activity rows inside the caller's transaction so the
// audit record commits or rolls back together with the mutation it describes.
type Writer struct {
	Now func() time.Time
}

func (w Writer) Append(ctx context.Context, tx *sql.Tx, taskID, actorID int64, actorType models.ActorType, action string, detail map[string]string) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	if detail == nil {
		detail = map[string]string{}
	}
	data, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("marshal activity detail: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO activity_events (task_id, actor_id, actor_type, action, detail, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		taskID, actorID, actorType, action, string(data), now().UTC())
	return err
}
