package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type EventPayload map[string]any

// Change is one journal entry produced by a transition.
type Change struct {
	Type       string
	EntityKind string
	EntityID   string
	Payload    EventPayload
}

// Append inserts a single event row inside tx.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, entityKind, entityID, actorID string, payload EventPayload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339Nano)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?)`,
		ts, evtType, entityKind, nullable(entityID), actorID, string(data))
	return err
}

// Record writes all changes in one transaction; either every row lands or none.
func (w Writer) Record(ctx context.Context, actorID string, changes []Change) error {
	if len(changes) == 0 {
		return nil
	}
	if w.DB == nil {
		return fmt.Errorf("event journal not configured")
	}
	tx, err := w.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, c := range changes {
		if err := w.Append(ctx, tx, c.Type, c.EntityKind, c.EntityID, actorID, c.Payload); err != nil {
			return fmt.Errorf("append %s: %w", c.Type, err)
		}
	}
	return tx.Commit()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
