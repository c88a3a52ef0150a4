package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clarvoy/clarvoy/internal/domain"
	"github.com/clarvoy/clarvoy/internal/ports"
)

//go:embed schema.sql
var schemaSQL string

// PostgreSQL error codes the store translates.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

var _ ports.Store = (*PostgresStore)(nil)

// PostgresConfig configures the connection pool.
type PostgresConfig struct {
	DSN             string        `koanf:"dsn" yaml:"dsn"`
	MaxConns        int32         `koanf:"max_conns" yaml:"max_conns"`
	MaxConnLifetime time.Duration `koanf:"max_conn_lifetime" yaml:"max_conn_lifetime"`
	// Migrate applies the embedded schema on connect.
	Migrate bool `koanf:"migrate" yaml:"migrate"`
}

// PostgresStore implements ports.Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects, pings and optionally migrates.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	store := &PostgresStore{pool: pool}

	if err := store.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if cfg.Migrate {
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return store, nil
}

// Migrate applies the embedded schema. Statements are idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return ports.NewStoreError("migrate", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return ports.NewStoreError("ping", err)
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() { s.pool.Close() }

// translate maps driver errors onto domain sentinels and wraps the rest.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			if pgErr.ConstraintName == "judgments_decision_user_key" {
				return domain.ErrDuplicateJudgment
			}
		case pgForeignKeyViolation:
			return domain.ErrNotFound
		}
	}
	return ports.NewStoreError(op, err)
}

const decisionColumns = `id, title, description, category, status, deadline, author_id,
	consensus_reached, outcome, created_at, updated_at`

func scanDecision(row pgx.Row) (domain.Decision, error) {
	var d domain.Decision
	err := row.Scan(&d.ID, &d.Title, &d.Description, &d.Category, &d.Status, &d.Deadline,
		&d.AuthorID, &d.ConsensusReached, &d.Outcome, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

// ListDecisions returns every decision oldest first.
func (s *PostgresStore) ListDecisions(ctx context.Context) ([]domain.Decision, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+decisionColumns+` FROM decisions ORDER BY created_at, id`)
	if err != nil {
		return nil, translate("list decisions", err)
	}
	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Decision, error) {
		return scanDecision(r)
	})
	return out, translate("list decisions", err)
}

// GetDecision returns domain.ErrNotFound for unknown ids.
func (s *PostgresStore) GetDecision(ctx context.Context, id int64) (domain.Decision, error) {
	d, err := scanDecision(s.pool.QueryRow(ctx,
		`SELECT `+decisionColumns+` FROM decisions WHERE id = $1`, id))
	return d, translate("get decision", err)
}

// CreateDecision inserts d and returns the stored row.
func (s *PostgresStore) CreateDecision(ctx context.Context, d domain.Decision) (domain.Decision, error) {
	created, err := scanDecision(s.pool.QueryRow(ctx, `
		INSERT INTO decisions (title, description, category, status, deadline, author_id,
			consensus_reached, outcome, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, now()), COALESCE($10, now()))
		RETURNING `+decisionColumns,
		d.Title, d.Description, d.Category, d.Status, d.Deadline, d.AuthorID,
		d.ConsensusReached, d.Outcome, nullTime(d.CreatedAt), nullTime(d.UpdatedAt)))
	return created, translate("create decision", err)
}

// UpdateDecision writes the mutable columns of d.
func (s *PostgresStore) UpdateDecision(ctx context.Context, d domain.Decision) (domain.Decision, error) {
	updated, err := scanDecision(s.pool.QueryRow(ctx, `
		UPDATE decisions SET title = $2, description = $3, category = $4, status = $5,
			deadline = $6, consensus_reached = $7, outcome = $8, updated_at = COALESCE($9, now())
		WHERE id = $1
		RETURNING `+decisionColumns,
		d.ID, d.Title, d.Description, d.Category, d.Status, d.Deadline,
		d.ConsensusReached, d.Outcome, nullTime(d.UpdatedAt)))
	return updated, translate("update decision", err)
}

// DeleteDecision removes the decision; foreign keys cascade to its
// judgments, comments and attachments.
func (s *PostgresStore) DeleteDecision(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM decisions WHERE id = $1`, id)
	if err != nil {
		return translate("delete decision", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const judgmentColumns = `id, decision_id, user_id, score, rationale, submitted_at`

func scanJudgment(row pgx.Row) (domain.Judgment, error) {
	var j domain.Judgment
	err := row.Scan(&j.ID, &j.DecisionID, &j.UserID, &j.Score, &j.Rationale, &j.CreatedAt)
	return j, err
}

// CreateJudgment maps the (decision, user) uniqueness conflict to
// domain.ErrDuplicateJudgment.
func (s *PostgresStore) CreateJudgment(ctx context.Context, j domain.Judgment) (domain.Judgment, error) {
	created, err := scanJudgment(s.pool.QueryRow(ctx, `
		INSERT INTO judgments (decision_id, user_id, score, rationale, submitted_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
		RETURNING `+judgmentColumns,
		j.DecisionID, j.UserID, j.Score, j.Rationale, nullTime(j.CreatedAt)))
	return created, translate("create judgment", err)
}

// ListJudgments returns the decision's judgments oldest first.
func (s *PostgresStore) ListJudgments(ctx context.Context, decisionID int64) ([]domain.Judgment, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+judgmentColumns+`
		FROM judgments WHERE decision_id = $1 ORDER BY submitted_at, id`, decisionID)
	if err != nil {
		return nil, translate("list judgments", err)
	}
	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Judgment, error) {
		return scanJudgment(r)
	})
	return out, translate("list judgments", err)
}

// GetUserJudgment returns domain.ErrNotFound when the user has not judged.
func (s *PostgresStore) GetUserJudgment(ctx context.Context, decisionID int64, userID string) (domain.Judgment, error) {
	j, err := scanJudgment(s.pool.QueryRow(ctx, `SELECT `+judgmentColumns+`
		FROM judgments WHERE decision_id = $1 AND user_id = $2`, decisionID, userID))
	return j, translate("get user judgment", err)
}

const commentColumns = `id, decision_id, user_id, content, is_ai_generated, created_at`

func scanComment(row pgx.Row) (domain.Comment, error) {
	var c domain.Comment
	err := row.Scan(&c.ID, &c.DecisionID, &c.UserID, &c.Content, &c.IsAIGenerated, &c.CreatedAt)
	return c, err
}

// CreateComment inserts c.
func (s *PostgresStore) CreateComment(ctx context.Context, c domain.Comment) (domain.Comment, error) {
	created, err := scanComment(s.pool.QueryRow(ctx, `
		INSERT INTO comments (decision_id, user_id, content, is_ai_generated, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
		RETURNING `+commentColumns,
		c.DecisionID, c.UserID, c.Content, c.IsAIGenerated, nullTime(c.CreatedAt)))
	return created, translate("create comment", err)
}

// ListComments returns the decision's comments oldest first.
func (s *PostgresStore) ListComments(ctx context.Context, decisionID int64) ([]domain.Comment, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+commentColumns+`
		FROM comments WHERE decision_id = $1 ORDER BY created_at, id`, decisionID)
	if err != nil {
		return nil, translate("list comments", err)
	}
	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Comment, error) {
		return scanComment(r)
	})
	return out, translate("list comments", err)
}

const attachmentColumns = `id, decision_id, user_id, file_name, file_type, file_size,
	object_path, extracted_text, context, created_at`

func scanAttachment(row pgx.Row) (domain.Attachment, error) {
	var a domain.Attachment
	err := row.Scan(&a.ID, &a.DecisionID, &a.UserID, &a.FileName, &a.FileType, &a.FileSize,
		&a.ObjectPath, &a.ExtractedText, &a.Context, &a.CreatedAt)
	return a, err
}

// CreateAttachment inserts a.
func (s *PostgresStore) CreateAttachment(ctx context.Context, a domain.Attachment) (domain.Attachment, error) {
	created, err := scanAttachment(s.pool.QueryRow(ctx, `
		INSERT INTO attachments (decision_id, user_id, file_name, file_type, file_size,
			object_path, extracted_text, context, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, now()))
		RETURNING `+attachmentColumns,
		a.DecisionID, a.UserID, a.FileName, a.FileType, a.FileSize,
		a.ObjectPath, a.ExtractedText, a.Context, nullTime(a.CreatedAt)))
	return created, translate("create attachment", err)
}

// ListAttachments returns the decision's attachments oldest first.
func (s *PostgresStore) ListAttachments(ctx context.Context, decisionID int64) ([]domain.Attachment, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+attachmentColumns+`
		FROM attachments WHERE decision_id = $1 ORDER BY created_at, id`, decisionID)
	if err != nil {
		return nil, translate("list attachments", err)
	}
	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Attachment, error) {
		return scanAttachment(r)
	})
	return out, translate("list attachments", err)
}

// GetAttachment returns domain.ErrNotFound for unknown ids.
func (s *PostgresStore) GetAttachment(ctx context.Context, id int64) (domain.Attachment, error) {
	a, err := scanAttachment(s.pool.QueryRow(ctx,
		`SELECT `+attachmentColumns+` FROM attachments WHERE id = $1`, id))
	return a, translate("get attachment", err)
}

// UpdateAttachmentText stores extracted text.
func (s *PostgresStore) UpdateAttachmentText(ctx context.Context, id int64, text string) (domain.Attachment, error) {
	a, err := scanAttachment(s.pool.QueryRow(ctx,
		`UPDATE attachments SET extracted_text = $2 WHERE id = $1 RETURNING `+attachmentColumns, id, text))
	return a, translate("update attachment text", err)
}

// DeleteAttachment returns domain.ErrNotFound for unknown ids.
func (s *PostgresStore) DeleteAttachment(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM attachments WHERE id = $1`, id)
	if err != nil {
		return translate("delete attachment", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const auditColumns = `id, user_id, action, entity_type, entity_id, details, created_at`

func scanAuditLog(row pgx.Row) (domain.AuditLog, error) {
	var e domain.AuditLog
	err := row.Scan(&e.ID, &e.UserID, &e.Action, &e.EntityType, &e.EntityID, &e.Details, &e.CreatedAt)
	return e, err
}

// CreateAuditLog appends an entry. Details are stored as JSONB.
func (s *PostgresStore) CreateAuditLog(ctx context.Context, entry domain.AuditLog) (domain.AuditLog, error) {
	created, err := scanAuditLog(s.pool.QueryRow(ctx, `
		INSERT INTO audit_logs (user_id, action, entity_type, entity_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))
		RETURNING `+auditColumns,
		entry.UserID, entry.Action, entry.EntityType, entry.EntityID, entry.Details, nullTime(entry.CreatedAt)))
	return created, translate("create audit log", err)
}

// ListAuditLogs returns every entry oldest first.
func (s *PostgresStore) ListAuditLogs(ctx context.Context) ([]domain.AuditLog, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+auditColumns+` FROM audit_logs ORDER BY created_at, id`)
	if err != nil {
		return nil, translate("list audit logs", err)
	}
	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.AuditLog, error) {
		return scanAuditLog(r)
	})
	return out, translate("list audit logs", err)
}

// nullTime sends the zero time as NULL so the column default applies.
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
