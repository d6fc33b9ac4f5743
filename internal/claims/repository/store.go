package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound        = errors.New("claim not found")
	ErrVersionConflict = errors.New("claim version conflict")
)

// Mutation is one atomic write: the claim row and its steps, plus at most one
// expertise upsert, one new document and one new event.
type Mutation struct {
	Claim ClaimRow
	// ExpectedVersion is the version the write was computed from. Apply
	// refuses the write when the stored version differs.
	ExpectedVersion int64
	Steps           []StepRow
	Expertise       *ExpertiseRow
	Document        *DocumentRow
	Event           *EventRow
}

// Store is the relational side of the repository.
type Store interface {
	FetchAll(ctx context.Context) (Dataset, error)
	NextSequence(ctx context.Context, year int) (int64, error)
	Insert(ctx context.Context, m Mutation) error
	Apply(ctx context.Context, m Mutation) error
}

// PostgresStore implements Store with pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const selectClaimsQuery = `
	SELECT id, claim_number, policy_number, declarant_id, gestionnaire_id, expert_id, medecin_id,
		incident_date, declaration_date, location, description,
		amount_claimed, amount_approved, amount_paid, status, type, rejection_reason, approved_at,
		current_step_id, version, created_at, updated_at
	FROM claims
	ORDER BY created_at DESC
`

const selectProfilesQuery = `
	SELECT p.id, p.email, p.name, p.phone, p.avatar,
		COALESCE(array_agg(ur.role::text ORDER BY ur.role) FILTER (WHERE ur.role IS NOT NULL), '{}') AS roles,
		p.created_at
	FROM profiles p
	LEFT JOIN user_roles ur ON ur.user_id = p.id
	WHERE p.id IN (
		SELECT declarant_id FROM claims
		UNION SELECT gestionnaire_id FROM claims WHERE gestionnaire_id IS NOT NULL
		UNION SELECT expert_id FROM claims WHERE expert_id IS NOT NULL
		UNION SELECT medecin_id FROM claims WHERE medecin_id IS NOT NULL
		UNION SELECT uploaded_by FROM documents
		UNION SELECT user_id FROM claim_events WHERE user_id IS NOT NULL
	)
	GROUP BY p.id
`

const selectStepsQuery = `
	SELECT claim_id, step_id, position, status, started_at, completed_at
	FROM claim_process_steps
	ORDER BY claim_id, position
`

const selectDocumentsQuery = `
	SELECT id, claim_id, name, type, uploaded_by, url, created_at
	FROM documents
	ORDER BY created_at
`

const selectEventsQuery = `
	SELECT id, claim_id, event_type, description, created_at, user_id
	FROM claim_events
	ORDER BY created_at DESC
`

const selectExpertisesQuery = `
	SELECT id, claim_id, expert_id, status, scheduled_date, completed_date, report, estimated_amount, created_at
	FROM claim_expertises
`

// FetchAll reads every table in one batch inside a read-only repeatable-read
// transaction, so the six result sets share a snapshot.
func (s *PostgresStore) FetchAll(ctx context.Context) (ds Dataset, err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return Dataset{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	batch.Queue(selectClaimsQuery)
	batch.Queue(selectProfilesQuery)
	batch.Queue(selectStepsQuery)
	batch.Queue(selectDocumentsQuery)
	batch.Queue(selectEventsQuery)
	batch.Queue(selectExpertisesQuery)

	br := tx.SendBatch(ctx, batch)
	defer func() {
		if closeErr := br.Close(); err == nil {
			err = closeErr
		}
	}()

	if ds.Claims, err = collect(br, scanClaim); err != nil {
		return Dataset{}, err
	}
	if ds.Profiles, err = collect(br, scanProfile); err != nil {
		return Dataset{}, err
	}
	if ds.Steps, err = collect(br, scanStep); err != nil {
		return Dataset{}, err
	}
	if ds.Documents, err = collect(br, scanDocument); err != nil {
		return Dataset{}, err
	}
	if ds.Events, err = collect(br, scanEvent); err != nil {
		return Dataset{}, err
	}
	if ds.Expertises, err = collect(br, scanExpertise); err != nil {
		return Dataset{}, err
	}
	return ds, nil
}

func collect[T any](br pgx.BatchResults, scan func(pgx.CollectableRow) (T, error)) ([]T, error) {
	rows, err := br.Query()
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scan)
}

func scanClaim(row pgx.CollectableRow) (ClaimRow, error) {
	var r ClaimRow
	err := row.Scan(
		&r.ID, &r.ClaimNumber, &r.PolicyNumber, &r.DeclarantID, &r.GestionnaireID, &r.ExpertID, &r.MedecinID,
		&r.IncidentDate, &r.DeclarationDate, &r.Location, &r.Description,
		&r.AmountClaimed, &r.AmountApproved, &r.AmountPaid, &r.Status, &r.Type, &r.RejectionReason, &r.ApprovedAt,
		&r.CurrentStepID, &r.Version, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

func scanProfile(row pgx.CollectableRow) (ProfileRow, error) {
	var r ProfileRow
	err := row.Scan(&r.ID, &r.Email, &r.Name, &r.Phone, &r.Avatar, &r.Roles, &r.CreatedAt)
	return r, err
}

func scanStep(row pgx.CollectableRow) (StepRow, error) {
	var r StepRow
	err := row.Scan(&r.ClaimID, &r.StepID, &r.Position, &r.Status, &r.StartedAt, &r.CompletedAt)
	return r, err
}

func scanDocument(row pgx.CollectableRow) (DocumentRow, error) {
	var r DocumentRow
	err := row.Scan(&r.ID, &r.ClaimID, &r.Name, &r.Type, &r.UploadedBy, &r.URL, &r.CreatedAt)
	return r, err
}

func scanEvent(row pgx.CollectableRow) (EventRow, error) {
	var r EventRow
	err := row.Scan(&r.ID, &r.ClaimID, &r.EventType, &r.Description, &r.CreatedAt, &r.UserID)
	return r, err
}

func scanExpertise(row pgx.CollectableRow) (ExpertiseRow, error) {
	var r ExpertiseRow
	err := row.Scan(&r.ID, &r.ClaimID, &r.ExpertID, &r.Status, &r.ScheduledDate, &r.CompletedDate, &r.Report, &r.EstimatedAmount, &r.CreatedAt)
	return r, err
}

// NextSequence allocates the next claim number for year. Numbers burnt by a
// failed insert are not reused.
func (s *PostgresStore) NextSequence(ctx context.Context, year int) (int64, error) {
	var next int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO claim_number_sequences (year, last_value)
		VALUES ($1, 1)
		ON CONFLICT (year) DO UPDATE SET last_value = claim_number_sequences.last_value + 1
		RETURNING last_value
	`, year).Scan(&next)
	return next, err
}

// Insert writes a new claim with its steps and creation event.
func (s *PostgresStore) Insert(ctx context.Context, m Mutation) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	c := m.Claim
	if _, err = tx.Exec(ctx, `
		INSERT INTO claims (
			id, claim_number, policy_number, declarant_id, gestionnaire_id, expert_id, medecin_id,
			incident_date, declaration_date, location, description,
			amount_claimed, amount_approved, amount_paid, status, type, rejection_reason, approved_at,
			current_step_id, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`,
		c.ID, c.ClaimNumber, c.PolicyNumber, c.DeclarantID, c.GestionnaireID, c.ExpertID, c.MedecinID,
		c.IncidentDate, c.DeclarationDate, c.Location, c.Description,
		c.AmountClaimed, c.AmountApproved, c.AmountPaid, c.Status, c.Type, c.RejectionReason, c.ApprovedAt,
		c.CurrentStepID, c.Version, c.CreatedAt, c.UpdatedAt,
	); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, step := range m.Steps {
		batch.Queue(`
			INSERT INTO claim_process_steps (claim_id, step_id, position, status, started_at, completed_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, step.ClaimID, step.StepID, step.Position, step.Status, step.StartedAt, step.CompletedAt)
	}
	queueChildren(batch, m)
	if err = sendAll(ctx, tx, batch); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Apply updates an existing claim under the optimistic version check.
func (s *PostgresStore) Apply(ctx context.Context, m Mutation) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	c := m.Claim
	tag, err := tx.Exec(ctx, `
		UPDATE claims SET
			gestionnaire_id = $3,
			expert_id = $4,
			medecin_id = $5,
			amount_claimed = $6,
			amount_approved = $7,
			amount_paid = $8,
			status = $9,
			rejection_reason = $10,
			approved_at = $11,
			current_step_id = $12,
			version = $13,
			updated_at = $14
		WHERE id = $1 AND version = $2
	`,
		c.ID, m.ExpectedVersion, c.GestionnaireID, c.ExpertID, c.MedecinID,
		c.AmountClaimed, c.AmountApproved, c.AmountPaid, c.Status, c.RejectionReason, c.ApprovedAt,
		c.CurrentStepID, c.Version, c.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		err = missingOrStale(ctx, tx, c.ID)
		return err
	}

	batch := &pgx.Batch{}
	for _, step := range m.Steps {
		batch.Queue(`
			UPDATE claim_process_steps
			SET status = $3, started_at = $4, completed_at = $5
			WHERE claim_id = $1 AND step_id = $2
		`, step.ClaimID, step.StepID, step.Status, step.StartedAt, step.CompletedAt)
	}
	queueChildren(batch, m)
	if err = sendAll(ctx, tx, batch); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func missingOrStale(ctx context.Context, tx pgx.Tx, claimID uuid.UUID) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM claims WHERE id = $1)`, claimID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrVersionConflict
}

func queueChildren(batch *pgx.Batch, m Mutation) {
	if x := m.Expertise; x != nil {
		batch.Queue(`
			INSERT INTO claim_expertises (id, claim_id, expert_id, status, scheduled_date, completed_date, report, estimated_amount, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (claim_id) DO UPDATE SET
				expert_id = EXCLUDED.expert_id,
				status = EXCLUDED.status,
				scheduled_date = EXCLUDED.scheduled_date,
				completed_date = EXCLUDED.completed_date,
				report = EXCLUDED.report,
				estimated_amount = EXCLUDED.estimated_amount
		`, x.ID, x.ClaimID, x.ExpertID, x.Status, x.ScheduledDate, x.CompletedDate, x.Report, x.EstimatedAmount, x.CreatedAt)
	}
	if d := m.Document; d != nil {
		batch.Queue(`
			INSERT INTO documents (id, claim_id, name, type, uploaded_by, url, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, d.ID, d.ClaimID, d.Name, d.Type, d.UploadedBy, d.URL, d.CreatedAt)
	}
	if e := m.Event; e != nil {
		batch.Queue(`
			INSERT INTO claim_events (id, claim_id, event_type, description, created_at, user_id)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, e.ID, e.ClaimID, e.EventType, e.Description, e.CreatedAt, e.UserID)
	}
}

func sendAll(ctx context.Context, tx pgx.Tx, batch *pgx.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return err
		}
	}
	return br.Close()
}
