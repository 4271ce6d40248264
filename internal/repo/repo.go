package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"stagelink/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// ErrConflict signals a compare-and-set miss on a versioned row. Callers
// should re-read and retry.
var ErrConflict = errors.New("conflict: stale version, re-read and retry")

const proposalColumns = `id,project_id,dancer_id,sender_id,role,fee,status,sender_read_at,receiver_read_at,version,created_at,updated_at`

func scanProposal(scan func(dest ...any) error) (domain.Proposal, error) {
	var p domain.Proposal
	var fee sql.NullInt64
	var senderRead, receiverRead sql.NullString
	err := scan(&p.ID, &p.ProjectID, &p.DancerID, &p.SenderID, &p.Role, &fee, &p.Status,
		&senderRead, &receiverRead, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if fee.Valid {
		p.Fee = &fee.Int64
	}
	if senderRead.Valid {
		p.SenderReadAt = &senderRead.String
	}
	if receiverRead.Valid {
		p.ReceiverReadAt = &receiverRead.String
	}
	return p, nil
}

func (r Repo) InsertProposal(ctx context.Context, tx *sql.Tx, p domain.Proposal) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO proposals(`+proposalColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.ProjectID, p.DancerID, p.SenderID, p.Role, nullableIntPtr(p.Fee), p.Status,
		nullableStringPtr(p.SenderReadAt), nullableStringPtr(p.ReceiverReadAt), p.Version, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r Repo) GetProposal(ctx context.Context, id string) (domain.Proposal, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id=?`, id)
	return scanProposal(row.Scan)
}

func (r Repo) GetProposalTx(ctx context.Context, tx *sql.Tx, id string) (domain.Proposal, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id=?`, id)
	return scanProposal(row.Scan)
}

// UpdateProposalCAS writes the proposal guarded by its expected version.
// The stored version is bumped; a stale expectation yields ErrConflict.
func (r Repo) UpdateProposalCAS(ctx context.Context, tx *sql.Tx, p domain.Proposal, expectedVersion int) error {
	res, err := tx.ExecContext(ctx, `UPDATE proposals SET fee=?, status=?, sender_read_at=?, receiver_read_at=?, version=version+1, updated_at=? WHERE id=? AND version=?`,
		nullableIntPtr(p.Fee), p.Status, nullableStringPtr(p.SenderReadAt), nullableStringPtr(p.ReceiverReadAt),
		p.UpdatedAt, p.ID, expectedVersion)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrConflict
	}
	return nil
}

type ProposalFilters struct {
	ProjectID string
	DancerID  string
	SenderID  string
	Statuses  []string
	Limit     int
}

func (r Repo) ListProposals(ctx context.Context, f ProposalFilters) ([]domain.Proposal, error) {
	var clauses []string
	var args []any
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.DancerID != "" {
		clauses = append(clauses, "dancer_id=?")
		args = append(args, f.DancerID)
	}
	if f.SenderID != "" {
		clauses = append(clauses, "sender_id=?")
		args = append(args, f.SenderID)
	}
	if len(f.Statuses) > 0 {
		placeholders := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			placeholders[i] = "?"
			args = append(args, s)
		}
		clauses = append(clauses, "status IN ("+strings.Join(placeholders, ",")+")")
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + proposalColumns + ` FROM proposals ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Proposal
	for rows.Next() {
		p, err := scanProposal(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// ListSettlementProposals returns every proposal a dancer participates in,
// either as the addressed dancer or through a project they manage as PM.
func (r Repo) ListSettlementProposals(ctx context.Context, dancerID string) ([]domain.Proposal, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+proposalColumns+` FROM proposals
WHERE dancer_id=? OR project_id IN (SELECT id FROM projects WHERE pm_dancer_id=? AND deleted_at IS NULL)
ORDER BY created_at ASC, id ASC`, dancerID, dancerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Proposal
	for rows.Next() {
		p, err := scanProposal(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// CountActiveProposals counts proposals in an active status for a project.
func (r Repo) CountActiveProposals(ctx context.Context, projectID string) (int, error) {
	placeholders := make([]string, len(domain.ActiveProposalStatuses))
	args := []any{projectID}
	for i, s := range domain.ActiveProposalStatuses {
		placeholders[i] = "?"
		args = append(args, s)
	}
	row := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM proposals WHERE project_id=? AND status IN (`+strings.Join(placeholders, ",")+`)`, args...)
	var n int
	err := row.Scan(&n)
	return n, err
}

func (r Repo) InsertEntry(ctx context.Context, tx *sql.Tx, e domain.NegotiationEntry) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO negotiation_entries(id,proposal_id,actor_id,type,message,fee,created_at) VALUES (?,?,?,?,?,?,?)`,
		e.ID, e.ProposalID, e.ActorID, e.Type, nullable(e.Message), nullableIntPtr(e.Fee), e.CreatedAt)
	return err
}

// ListEntries returns negotiation history in append order.
func (r Repo) ListEntries(ctx context.Context, proposalID string) ([]domain.NegotiationEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,proposal_id,actor_id,type,message,fee,created_at FROM negotiation_entries WHERE proposal_id=? ORDER BY created_at ASC, id ASC`, proposalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.NegotiationEntry
	for rows.Next() {
		var e domain.NegotiationEntry
		var message sql.NullString
		var fee sql.NullInt64
		if err := rows.Scan(&e.ID, &e.ProposalID, &e.ActorID, &e.Type, &message, &fee, &e.CreatedAt); err != nil {
			return nil, err
		}
		if message.Valid {
			e.Message = message.String
		}
		if fee.Valid {
			e.Fee = &fee.Int64
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

const projectColumns = `id,owner_id,parent_id,client_id,pm_dancer_id,title,category,confirmation_status,progress_status,visibility,embargo_date,budget,start_date,end_date,deleted_at,archived,created_at,updated_at`

func scanProject(scan func(dest ...any) error) (domain.Project, error) {
	var p domain.Project
	var parentID, clientID, pmDancerID, category, embargo, startDate, endDate, deletedAt sql.NullString
	var budget sql.NullInt64
	var archived int
	err := scan(&p.ID, &p.OwnerID, &parentID, &clientID, &pmDancerID, &p.Title, &category,
		&p.ConfirmationStatus, &p.ProgressStatus, &p.Visibility, &embargo, &budget,
		&startDate, &endDate, &deletedAt, &archived, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if parentID.Valid {
		p.ParentID = &parentID.String
	}
	if clientID.Valid {
		p.ClientID = &clientID.String
	}
	if pmDancerID.Valid {
		p.PMDancerID = &pmDancerID.String
	}
	if category.Valid {
		p.Category = category.String
	}
	if embargo.Valid {
		p.EmbargoDate = &embargo.String
	}
	if budget.Valid {
		p.Budget = &budget.Int64
	}
	if startDate.Valid {
		p.StartDate = &startDate.String
	}
	if endDate.Valid {
		p.EndDate = &endDate.String
	}
	if deletedAt.Valid {
		p.DeletedAt = &deletedAt.String
	}
	p.Archived = archived != 0
	return p, nil
}

func (r Repo) InsertProject(ctx context.Context, p domain.Project) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO projects(`+projectColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.OwnerID, nullableStringPtr(p.ParentID), nullableStringPtr(p.ClientID), nullableStringPtr(p.PMDancerID),
		p.Title, nullable(p.Category), p.ConfirmationStatus, p.ProgressStatus, p.Visibility,
		nullableStringPtr(p.EmbargoDate), nullableIntPtr(p.Budget), nullableStringPtr(p.StartDate), nullableStringPtr(p.EndDate),
		nullableStringPtr(p.DeletedAt), boolInt(p.Archived), p.CreatedAt, p.UpdatedAt)
	return err
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=?`, id)
	return scanProject(row.Scan)
}

// GetProjects fetches a set of projects keyed by id. Missing ids are skipped.
func (r Repo) GetProjects(ctx context.Context, ids []string) (map[string]domain.Project, error) {
	res := make(map[string]domain.Project, len(ids))
	if len(ids) == 0 {
		return res, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id IN (`+strings.Join(placeholders, ",")+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProject(rows.Scan)
		if err != nil {
			return nil, err
		}
		res[p.ID] = p
	}
	return res, rows.Err()
}

// ProjectPMMap returns project id -> pm dancer id for projects that have one.
func (r Repo) ProjectPMMap(ctx context.Context, projectIDs []string) (map[string]string, error) {
	projects, err := r.GetProjects(ctx, projectIDs)
	if err != nil {
		return nil, err
	}
	res := make(map[string]string, len(projects))
	for id, p := range projects {
		if p.PMDancerID != nil {
			res[id] = *p.PMDancerID
		}
	}
	return res, nil
}

// UpdateProjectStatus writes both status axes. Only the synchronizer calls this.
func (r Repo) UpdateProjectStatus(ctx context.Context, tx *sql.Tx, id, confirmation, progress, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE projects SET confirmation_status=?, progress_status=?, updated_at=? WHERE id=?`,
		confirmation, progress, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpdateProjectVisibility(ctx context.Context, id, visibility string, embargoDate *string, updatedAt string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE projects SET visibility=?, embargo_date=?, updated_at=? WHERE id=?`,
		visibility, nullableStringPtr(embargoDate), updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// PublishProject flips a still-private project to public. A project already
// public is left alone; either way the call succeeds.
func (r Repo) PublishProject(ctx context.Context, id, updatedAt string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE projects SET visibility=?, updated_at=? WHERE id=? AND visibility=?`,
		domain.VisibilityPublic, updatedAt, id, domain.VisibilityPrivate)
	return err
}

func (r Repo) SoftDeleteProject(ctx context.Context, id, deletedAt string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE projects SET deleted_at=?, updated_at=? WHERE id=? AND deleted_at IS NULL`,
		deletedAt, deletedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListProjectsByOwner(ctx context.Context, ownerID string) ([]domain.Project, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE owner_id=? AND deleted_at IS NULL ORDER BY created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		p, err := scanProject(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func nullableIntPtr(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// LatestEvents returns the most recent audit log entries, newest first.
func (r Repo) LatestEvents(ctx context.Context, limit int, projectID, evtType, entityKind, entityID string) ([]domain.Event, error) {
	clauses := []string{"1=1"}
	var args []any
	if projectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, projectID)
	}
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if entityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, entityKind)
	}
	if entityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,project_id,entity_kind,entity_id,actor_id,payload_json FROM events %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var projID, entID, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &projID, &e.EntityKind, &entID, &e.ActorID, &payload); err != nil {
			return nil, err
		}
		if projID.Valid {
			e.ProjectID = projID.String
		}
		if entID.Valid {
			e.EntityID = entID.String
		}
		if payload.Valid {
			e.Payload = payload.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
