package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/inkwell/internal/domain"
	"github.com/phrazzld/inkwell/internal/platform/logger"
	"github.com/phrazzld/inkwell/internal/store"
)

const contentColumns = `id, job_id, user_id, prompt, content_type, provider, model, status,
	generated_content, error_message, title, tags, notes, created_at, updated_at`

// nonTerminalStatuses is the SQL list of statuses an attempt cycle can still
// leave, in the form ('pending', 'queued', 'processing').
var nonTerminalStatuses = statusList(func(s domain.ContentStatus) bool {
	return s.CanTransitionTo(domain.ContentStatusCompleted)
})

func statusList(keep func(domain.ContentStatus) bool) string {
	var quoted []string
	for _, s := range domain.ContentStatuses() {
		if keep(s) {
			quoted = append(quoted, "'"+string(s)+"'")
		}
	}
	return "(" + strings.Join(quoted, ", ") + ")"
}

// PostgresContentStore implements store.ContentJobStore using PostgreSQL.
type PostgresContentStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresContentStore creates a content store on db. If logger is nil the
// default logger is used.
func NewPostgresContentStore(db store.DBTX, logger *slog.Logger) *PostgresContentStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresContentStore{
		db:     db,
		logger: logger.With(slog.String("component", "content_store")),
	}
}

var _ store.ContentJobStore = (*PostgresContentStore)(nil)

// WithTx implements store.ContentJobStore.WithTx.
func (s *PostgresContentStore) WithTx(tx *sql.Tx) store.ContentJobStore {
	return &PostgresContentStore{db: tx, logger: s.logger}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContent(row rowScanner) (*domain.ContentJob, error) {
	var (
		job       domain.ContentJob
		generated sql.NullString
		errMsg    sql.NullString
		tagsJSON  []byte
	)
	err := row.Scan(
		&job.ID,
		&job.JobID,
		&job.UserID,
		&job.Prompt,
		&job.ContentType,
		&job.Provider,
		&job.Model,
		&job.Status,
		&generated,
		&errMsg,
		&job.Title,
		&tagsJSON,
		&job.Notes,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	job.GeneratedContent = generated.String
	job.ErrorMessage = errMsg.String
	job.Tags = []string{}
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &job.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode tags: %w", err)
		}
	}
	return &job, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("failed to encode tags: %w", err)
	}
	return string(b), nil
}

// Create implements store.ContentJobStore.Create.
func (s *PostgresContentStore) Create(ctx context.Context, job *domain.ContentJob) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := job.Validate(); err != nil {
		log.Warn("content validation failed during create",
			slog.String("error", err.Error()),
			slog.String("content_id", job.ID.String()))
		return err
	}

	tags, err := encodeTags(job.Tags)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO contents (` + contentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err = s.db.ExecContext(ctx, query,
		job.ID,
		job.JobID,
		job.UserID,
		job.Prompt,
		job.ContentType,
		job.Provider,
		job.Model,
		job.Status,
		nullIfEmpty(job.GeneratedContent),
		nullIfEmpty(job.ErrorMessage),
		job.Title,
		tags,
		job.Notes,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create content",
			slog.String("error", err.Error()),
			slog.String("content_id", job.ID.String()),
			slog.String("user_id", job.UserID.String()))
		return MapError(err)
	}

	log.Debug("content created",
		slog.String("content_id", job.ID.String()),
		slog.String("job_id", job.JobID.String()))
	return nil
}

// GetByID implements store.ContentJobStore.GetByID.
func (s *PostgresContentStore) GetByID(ctx context.Context, ownerID, id uuid.UUID) (*domain.ContentJob, error) {
	query := `SELECT ` + contentColumns + ` FROM contents WHERE id = $1 AND user_id = $2`
	return s.getOne(ctx, query, id, ownerID)
}

// GetByJobID implements store.ContentJobStore.GetByJobID.
func (s *PostgresContentStore) GetByJobID(ctx context.Context, ownerID, jobID uuid.UUID) (*domain.ContentJob, error) {
	query := `SELECT ` + contentColumns + ` FROM contents WHERE job_id = $1 AND user_id = $2`
	return s.getOne(ctx, query, jobID, ownerID)
}

func (s *PostgresContentStore) getOne(ctx context.Context, query string, args ...any) (*domain.ContentJob, error) {
	job, err := scanContent(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrContentNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get content",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	return job, nil
}

// escapeLike escapes LIKE metacharacters so the search term matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// buildListWhere returns the WHERE clause and its arguments for a List call.
func buildListWhere(ownerID uuid.UUID, f store.ContentFilter) (string, []any) {
	conds := []string{"user_id = $1"}
	args := []any{ownerID}
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.ContentType != "" {
		add("content_type = $%d", f.ContentType)
	}
	if f.StartDate != nil {
		add("created_at >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		add("created_at <= $%d", *f.EndDate)
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		args = append(args, "%"+escapeLike(search)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(`(prompt ILIKE $%[1]d
			OR COALESCE(generated_content, '') ILIKE $%[1]d
			OR tags::text ILIKE $%[1]d
			OR notes ILIKE $%[1]d
			OR title ILIKE $%[1]d
			OR content_type ILIKE $%[1]d)`, n))
	}
	return strings.Join(conds, " AND "), args
}

// List implements store.ContentJobStore.List.
func (s *PostgresContentStore) List(
	ctx context.Context,
	ownerID uuid.UUID,
	filter store.ContentFilter,
	page store.Page,
) (*store.ContentList, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	page = page.Normalize()
	where, args := buildListWhere(ownerID, filter)

	var total int
	countQuery := `SELECT COUNT(*) FROM contents WHERE ` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		log.Error("failed to count contents", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	listArgs := append(append([]any{}, args...), page.Limit, page.Offset())
	listQuery := fmt.Sprintf(`SELECT %s FROM contents WHERE %s
		ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		contentColumns, where, len(args)+1, len(args)+2)

	rows, err := s.db.QueryContext(ctx, listQuery, listArgs...)
	if err != nil {
		log.Error("failed to list contents", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]*domain.ContentJob, 0, page.Limit)
	for rows.Next() {
		job, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan content row: %w", err)
		}
		items = append(items, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating content rows: %w", err)
	}

	return &store.ContentList{Items: items, Meta: store.NewPageMeta(page, total)}, nil
}

// UpdateMetadata implements store.ContentJobStore.UpdateMetadata.
func (s *PostgresContentStore) UpdateMetadata(
	ctx context.Context,
	ownerID, id uuid.UUID,
	update store.MetadataUpdate,
) (*domain.ContentJob, error) {
	var title, notes, tags sql.NullString
	if update.Title != nil {
		title = sql.NullString{String: *update.Title, Valid: true}
	}
	if update.Notes != nil {
		notes = sql.NullString{String: *update.Notes, Valid: true}
	}
	if update.Tags != nil {
		encoded, err := encodeTags(*update.Tags)
		if err != nil {
			return nil, err
		}
		tags = sql.NullString{String: encoded, Valid: true}
	}

	query := `
		UPDATE contents
		SET title = COALESCE($3, title),
			tags = COALESCE($4::jsonb, tags),
			notes = COALESCE($5, notes),
			updated_at = $6
		WHERE id = $1 AND user_id = $2
		RETURNING ` + contentColumns
	return s.getOne(ctx, query, id, ownerID, title, tags, notes, time.Now().UTC())
}

// BeginAttemptCycle implements store.ContentJobStore.BeginAttemptCycle.
func (s *PostgresContentStore) BeginAttemptCycle(
	ctx context.Context,
	ownerID, id uuid.UUID,
	provider domain.Provider,
	model string,
) (*domain.ContentJob, error) {
	if !provider.IsValid() {
		return nil, domain.ErrInvalidProvider
	}

	query := `
		UPDATE contents
		SET job_id = $3,
			provider = $4,
			model = $5,
			status = 'pending',
			generated_content = NULL,
			error_message = NULL,
			updated_at = $6
		WHERE id = $1 AND user_id = $2
		RETURNING ` + contentColumns
	job, err := s.getOne(ctx, query, id, ownerID, uuid.New(), provider, model, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("started new attempt cycle",
		slog.String("content_id", job.ID.String()),
		slog.String("job_id", job.JobID.String()))
	return job, nil
}

// MarkQueued implements store.ContentJobStore.MarkQueued.
func (s *PostgresContentStore) MarkQueued(ctx context.Context, jobID uuid.UUID) error {
	query := `
		UPDATE contents
		SET status = 'queued', updated_at = $2
		WHERE job_id = $1 AND status IN ('pending', 'queued')
	`
	result, err := s.db.ExecContext(ctx, query, jobID, time.Now().UTC())
	if err != nil {
		return MapError(err)
	}
	return checkRowsAffected(result, store.ErrStaleAttempt)
}

// RequeueStale implements store.ContentJobStore.RequeueStale.
func (s *PostgresContentStore) RequeueStale(ctx context.Context, jobID uuid.UUID, staleBefore time.Time) (bool, error) {
	query := `
		UPDATE contents
		SET status = 'queued', updated_at = $3
		WHERE job_id = $1 AND status IN ` + nonTerminalStatuses + ` AND updated_at < $2
	`
	result, err := s.db.ExecContext(ctx, query, jobID, staleBefore, time.Now().UTC())
	if err != nil {
		return false, MapError(err)
	}
	n, err := rowsAffected(result)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkProcessing implements store.ContentJobStore.MarkProcessing.
func (s *PostgresContentStore) MarkProcessing(ctx context.Context, jobID uuid.UUID) (*domain.ContentJob, error) {
	query := `
		UPDATE contents
		SET status = 'processing', updated_at = $2
		WHERE job_id = $1 AND status IN ` + nonTerminalStatuses + `
		RETURNING ` + contentColumns
	job, err := scanContent(s.db.QueryRowContext(ctx, query, jobID, time.Now().UTC()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrStaleAttempt
		}
		return nil, MapError(err)
	}
	return job, nil
}

// validateOutcome enforces the status/outcome pairing before it reaches the
// schema's CHECK constraints.
func validateOutcome(o store.Outcome) error {
	switch o.Status {
	case domain.ContentStatusCompleted:
		if o.GeneratedContent == "" || o.ErrorMessage != "" {
			return fmt.Errorf("%w: completed outcome requires content and no error", store.ErrInvalidEntity)
		}
	case domain.ContentStatusFailed:
		if o.ErrorMessage == "" || o.GeneratedContent != "" {
			return fmt.Errorf("%w: failed outcome requires an error and no content", store.ErrInvalidEntity)
		}
	default:
		return fmt.Errorf("%w: outcome status %q is not terminal", store.ErrInvalidEntity, o.Status)
	}
	return nil
}

// Finalize implements store.ContentJobStore.Finalize.
func (s *PostgresContentStore) Finalize(ctx context.Context, jobID uuid.UUID, outcome store.Outcome) (bool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := validateOutcome(outcome); err != nil {
		return false, err
	}

	query := `
		UPDATE contents
		SET status = $2,
			generated_content = $3,
			error_message = $4,
			updated_at = $5
		WHERE job_id = $1 AND status IN ` + nonTerminalStatuses
	result, err := s.db.ExecContext(ctx, query,
		jobID,
		outcome.Status,
		nullIfEmpty(outcome.GeneratedContent),
		nullIfEmpty(outcome.ErrorMessage),
		time.Now().UTC(),
	)
	if err != nil {
		log.Error("failed to finalize content",
			slog.String("error", err.Error()),
			slog.String("job_id", jobID.String()))
		return false, MapError(err)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return false, err
	}
	if n == 0 {
		log.Info("discarded outcome for superseded or missing attempt",
			slog.String("job_id", jobID.String()),
			slog.String("status", string(outcome.Status)))
		return false, nil
	}
	return true, nil
}

// ListStale implements store.ContentJobStore.ListStale.
func (s *PostgresContentStore) ListStale(
	ctx context.Context,
	olderThan time.Time,
	after *store.StaleCursor,
	limit int,
) ([]*domain.ContentJob, error) {
	if limit <= 0 {
		limit = store.MaxLimit
	}
	where := `status IN ` + nonTerminalStatuses + ` AND updated_at < $1`
	args := []any{olderThan}
	if after != nil {
		where += ` AND (updated_at, id) > ($2, $3)`
		args = append(args, after.UpdatedAt, after.ID)
	}
	args = append(args, limit)
	query := fmt.Sprintf(`SELECT %s FROM contents
		WHERE %s
		ORDER BY updated_at ASC, id ASC
		LIMIT $%d`, contentColumns, where, len(args))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []*domain.ContentJob
	for rows.Next() {
		job, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan content row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating content rows: %w", err)
	}
	return jobs, nil
}

// Delete implements store.ContentJobStore.Delete.
func (s *PostgresContentStore) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM contents WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to delete content",
			slog.String("error", err.Error()),
			slog.String("content_id", id.String()))
		return MapError(err)
	}
	return checkRowsAffected(result, store.ErrContentNotFound)
}
