package repo

import (
	"context"
	"database/sql"

	"stagelink/internal/domain"
)

// EnqueueIntent appends an outbox intent inside the caller's transaction so
// the intent commits atomically with the triggering write.
func (r Repo) EnqueueIntent(ctx context.Context, tx *sql.Tx, in domain.Intent) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO outbox(kind,project_id,proposal_id,event_type,actor_id,payload_json,status,attempts,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,0,?,?)`,
		in.Kind, nullable(in.ProjectID), nullable(in.ProposalID), nullable(in.EventType), in.ActorID,
		nullable(in.Payload), domain.IntentPending, in.CreatedAt, in.CreatedAt)
	return err
}

// PendingIntents returns up to limit pending intents, oldest first.
func (r Repo) PendingIntents(ctx context.Context, limit int) ([]domain.Intent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,kind,project_id,proposal_id,event_type,actor_id,payload_json,status,attempts,created_at,updated_at
FROM outbox WHERE status=? ORDER BY id ASC LIMIT ?`, domain.IntentPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Intent
	for rows.Next() {
		var in domain.Intent
		var projectID, proposalID, eventType, payload sql.NullString
		if err := rows.Scan(&in.ID, &in.Kind, &projectID, &proposalID, &eventType, &in.ActorID, &payload, &in.Status, &in.Attempts, &in.CreatedAt, &in.UpdatedAt); err != nil {
			return nil, err
		}
		if projectID.Valid {
			in.ProjectID = projectID.String
		}
		if proposalID.Valid {
			in.ProposalID = proposalID.String
		}
		if eventType.Valid {
			in.EventType = eventType.String
		}
		if payload.Valid {
			in.Payload = payload.String
		}
		res = append(res, in)
	}
	return res, rows.Err()
}

func (r Repo) MarkIntentSent(ctx context.Context, id int64, now string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE outbox SET status=?, updated_at=? WHERE id=?`, domain.IntentSent, now, id)
	return err
}

// MarkIntentFailed bumps the attempt counter; the intent stays pending for
// retry until maxAttempts is reached, then is parked as failed.
func (r Repo) MarkIntentFailed(ctx context.Context, id int64, maxAttempts int, now string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE outbox SET attempts=attempts+1,
status=CASE WHEN attempts+1 >= ? THEN ? ELSE ? END, updated_at=? WHERE id=?`,
		maxAttempts, domain.IntentFailed, domain.IntentPending, now, id)
	return err
}
