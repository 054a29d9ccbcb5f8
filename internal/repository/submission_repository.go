package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skillcheck/assessment-backend/internal/model"
)

// SubmissionRepository handles persisted submission history.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

const selectSubmission = `
	SELECT result, sync_status, sync_attempts, server_ack, last_error, updated_at
	FROM submissions`

// upsertGuard keeps a newer sync state from being overwritten by a stale one.
const upsertGuard = `
	ON CONFLICT (test_id) DO UPDATE SET
		sync_status   = EXCLUDED.sync_status,
		sync_attempts = EXCLUDED.sync_attempts,
		server_ack    = EXCLUDED.server_ack,
		last_error    = EXCLUDED.last_error,
		result        = EXCLUDED.result,
		updated_at    = EXCLUDED.updated_at
	WHERE submissions.updated_at <= EXCLUDED.updated_at`

type submissionRow struct {
	testID         uuid.UUID
	testType       string
	candidateID    string
	percentage     int
	classification string
	submittedAt    time.Time
	syncStatus     string
	syncAttempts   int
	serverAck      string
	lastError      string
	result         string
	updatedAt      time.Time
}

func toRow(rec *model.SubmissionRecord) (submissionRow, error) {
	result, err := json.Marshal(rec.Result)
	if err != nil {
		return submissionRow{}, fmt.Errorf("marshal result: %w", err)
	}
	ack := "null"
	if rec.ServerAck != nil {
		b, err := json.Marshal(rec.ServerAck)
		if err != nil {
			return submissionRow{}, fmt.Errorf("marshal ack: %w", err)
		}
		ack = string(b)
	}
	return submissionRow{
		testID:         rec.Result.TestID,
		testType:       rec.Result.TestType,
		candidateID:    rec.Result.CandidateID,
		percentage:     rec.Result.Percentage,
		classification: rec.Result.Classification,
		submittedAt:    rec.Result.SubmittedAt,
		syncStatus:     string(rec.SyncStatus),
		syncAttempts:   rec.SyncAttempts,
		serverAck:      ack,
		lastError:      rec.LastError,
		result:         string(result),
		updatedAt:      rec.UpdatedAt,
	}, nil
}

// Upsert writes a single record.
func (r *SubmissionRepository) Upsert(ctx context.Context, rec *model.SubmissionRecord) error {
	row, err := toRow(rec)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO submissions (
			test_id, test_type, candidate_id, percentage, classification, submitted_at,
			sync_status, sync_attempts, server_ack, last_error, result, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10, $11::jsonb, $12)`+upsertGuard,
		row.testID, row.testType, row.candidateID, row.percentage, row.classification, row.submittedAt,
		row.syncStatus, row.syncAttempts, row.serverAck, row.lastError, row.result, row.updatedAt,
	)
	return err
}

// UpsertBatch writes many records in one statement. Records must have
// distinct test ids.
func (r *SubmissionRepository) UpsertBatch(ctx context.Context, recs []*model.SubmissionRecord) error {
	n := len(recs)
	if n == 0 {
		return nil
	}

	testIDs := make([]uuid.UUID, 0, n)
	testTypes := make([]string, 0, n)
	candidates := make([]string, 0, n)
	percentages := make([]int, 0, n)
	classifications := make([]string, 0, n)
	submittedAts := make([]time.Time, 0, n)
	statuses := make([]string, 0, n)
	attempts := make([]int, 0, n)
	acks := make([]string, 0, n)
	lastErrors := make([]string, 0, n)
	results := make([]string, 0, n)
	updatedAts := make([]time.Time, 0, n)

	for _, rec := range recs {
		row, err := toRow(rec)
		if err != nil {
			return err
		}
		testIDs = append(testIDs, row.testID)
		testTypes = append(testTypes, row.testType)
		candidates = append(candidates, row.candidateID)
		percentages = append(percentages, row.percentage)
		classifications = append(classifications, row.classification)
		submittedAts = append(submittedAts, row.submittedAt)
		statuses = append(statuses, row.syncStatus)
		attempts = append(attempts, row.syncAttempts)
		acks = append(acks, row.serverAck)
		lastErrors = append(lastErrors, row.lastError)
		results = append(results, row.result)
		updatedAts = append(updatedAts, row.updatedAt)
	}

	query := `
		INSERT INTO submissions (
			test_id, test_type, candidate_id, percentage, classification, submitted_at,
			sync_status, sync_attempts, server_ack, last_error, result, updated_at
		)
		SELECT
			u.test_id, u.test_type, u.candidate_id, u.percentage, u.classification, u.submitted_at,
			u.sync_status, u.sync_attempts, u.server_ack::jsonb, u.last_error, u.result::jsonb, u.updated_at
		FROM UNNEST(
			$1::uuid[],
			$2::text[],
			$3::text[],
			$4::int[],
			$5::text[],
			$6::timestamptz[],
			$7::text[],
			$8::int[],
			$9::text[],
			$10::text[],
			$11::text[],
			$12::timestamptz[]
		) AS u (test_id, test_type, candidate_id, percentage, classification, submitted_at,
		        sync_status, sync_attempts, server_ack, last_error, result, updated_at)` + upsertGuard

	_, err := r.pool.Exec(ctx, query,
		testIDs, testTypes, candidates, percentages, classifications, submittedAts,
		statuses, attempts, acks, lastErrors, results, updatedAts,
	)
	return err
}

// GetByTestID returns pgx.ErrNoRows when nothing was stored.
func (r *SubmissionRepository) GetByTestID(ctx context.Context, testID uuid.UUID) (*model.SubmissionRecord, error) {
	row := r.pool.QueryRow(ctx, selectSubmission+` WHERE test_id = $1`, testID)
	return scanSubmission(row)
}

// ListByCandidate returns a page of a candidate's history, newest first.
func (r *SubmissionRepository) ListByCandidate(ctx context.Context, candidateID string, page, perPage int) ([]model.SubmissionRecord, int64, error) {
	offset := (page - 1) * perPage

	var total int64
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM submissions WHERE candidate_id = $1`, candidateID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		selectSubmission+` WHERE candidate_id = $1 ORDER BY submitted_at DESC LIMIT $2 OFFSET $3`,
		candidateID, perPage, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	recs, err := collect(rows)
	return recs, total, err
}

// ListBySyncStatus is used at startup to restore retryable submissions.
func (r *SubmissionRepository) ListBySyncStatus(ctx context.Context, statuses ...model.SyncStatus) ([]model.SubmissionRecord, error) {
	ss := make([]string, len(statuses))
	for i, s := range statuses {
		ss[i] = string(s)
	}
	rows, err := r.pool.Query(ctx,
		selectSubmission+` WHERE sync_status = ANY($1::text[]) ORDER BY submitted_at`, ss)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func collect(rows pgx.Rows) ([]model.SubmissionRecord, error) {
	var recs []model.SubmissionRecord
	for rows.Next() {
		rec, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

func scanSubmission(row pgx.Row) (*model.SubmissionRecord, error) {
	var (
		rec       model.SubmissionRecord
		result    []byte
		ack       []byte
		status    string
		lastError string
	)
	if err := row.Scan(&result, &status, &rec.SyncAttempts, &ack, &lastError, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(result, &rec.Result); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	if len(ack) > 0 && string(ack) != "null" {
		rec.ServerAck = &model.ServerAck{}
		if err := json.Unmarshal(ack, rec.ServerAck); err != nil {
			return nil, fmt.Errorf("unmarshal ack: %w", err)
		}
	}
	rec.SyncStatus = model.SyncStatus(status)
	rec.LastError = lastError
	return &rec, nil
}
