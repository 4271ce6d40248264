package repo

import (
	"context"
	"database/sql"

	"stagelink/internal/domain"
)

func (r Repo) EnsureAccount(ctx context.Context, accountID, name, now string) error {
	_, err := r.DB.ExecContext(ctx, `INSERT OR IGNORE INTO accounts(id,name,created_at) VALUES (?,?,?)`, accountID, nullable(name), now)
	return err
}

func (r Repo) InsertDancer(ctx context.Context, d domain.Dancer) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO dancers(id,owner_account_id,manager_account_id,name,created_at) VALUES (?,?,?,?,?)`,
		d.ID, d.OwnerAccountID, nullableStringPtr(d.ManagerAccountID), d.Name, d.CreatedAt)
	return err
}

func (r Repo) GetDancer(ctx context.Context, id string) (domain.Dancer, error) {
	var d domain.Dancer
	var manager sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,owner_account_id,manager_account_id,name,created_at FROM dancers WHERE id=?`, id).
		Scan(&d.ID, &d.OwnerAccountID, &manager, &d.Name, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	if err != nil {
		return d, err
	}
	if manager.Valid {
		d.ManagerAccountID = &manager.String
	}
	return d, nil
}

func (r Repo) InsertClientProfile(ctx context.Context, c domain.ClientProfile) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO client_profiles(id,owner_account_id,name,created_at) VALUES (?,?,?,?)`,
		c.ID, c.OwnerAccountID, c.Name, c.CreatedAt)
	return err
}

func (r Repo) GetClientProfile(ctx context.Context, id string) (domain.ClientProfile, error) {
	var c domain.ClientProfile
	err := r.DB.QueryRowContext(ctx, `SELECT id,owner_account_id,name,created_at FROM client_profiles WHERE id=?`, id).
		Scan(&c.ID, &c.OwnerAccountID, &c.Name, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

func (r Repo) InsertCareerEntry(ctx context.Context, e domain.CareerEntry) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO career_entries(id,dancer_id,title,description,project_id,fee,created_at) VALUES (?,?,?,?,?,?,?)`,
		e.ID, e.DancerID, e.Title, nullable(e.Description), nullableStringPtr(e.ProjectID), nullableIntPtr(e.Fee), e.CreatedAt)
	return err
}

func (r Repo) ListCareerEntries(ctx context.Context, dancerID string) ([]domain.CareerEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,dancer_id,title,description,project_id,fee,created_at FROM career_entries WHERE dancer_id=? ORDER BY created_at DESC, id DESC`, dancerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.CareerEntry
	for rows.Next() {
		var e domain.CareerEntry
		var description, projectID sql.NullString
		var fee sql.NullInt64
		if err := rows.Scan(&e.ID, &e.DancerID, &e.Title, &description, &projectID, &fee, &e.CreatedAt); err != nil {
			return nil, err
		}
		if description.Valid {
			e.Description = description.String
		}
		if projectID.Valid {
			e.ProjectID = &projectID.String
		}
		if fee.Valid {
			e.Fee = &fee.Int64
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
