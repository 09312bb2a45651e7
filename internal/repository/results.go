package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/zatobox/invoice-ocr/constants"
	"github.com/zatobox/invoice-ocr/internal/common"
	"github.com/zatobox/invoice-ocr/internal/entity"
)

// createdAtLayout has a fixed-width fraction so created_at sorts as text.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

type ResultRepository interface {
	Save(ctx context.Context, r entity.StoredResult) error
	Get(ctx context.Context, id uuid.UUID) (*entity.StoredResult, error)
	List(ctx context.Context, limit int) ([]entity.StoredResult, error)
}

type resultRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewResultRepository(db *DB, logger *slog.Logger) ResultRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &resultRepository{db: db, logger: logger}
}

func (r *resultRepository) Save(ctx context.Context, res entity.StoredResult) error {
	payload, err := json.Marshal(res.Result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}
	_, err = r.db.SQL.ExecContext(ctx, r.db.rebind(
		`INSERT INTO ocr_results (id, caller_hash, filename, mime_type, status, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`),
		res.ID.String(), res.CallerHash, res.Filename, res.MIMEType, string(res.Status),
		string(payload), res.CreatedAt.UTC().Format(createdAtLayout),
	)
	if err != nil {
		r.logger.Error("db.result.save.error", "id", res.ID, "error", err)
		return common.NewAppError("DB_ERROR", "save result", errors.Join(common.ErrDatabase, err))
	}
	r.logger.Debug("db.result.save.ok", "id", res.ID, "status", res.Status)
	return nil
}

func (r *resultRepository) Get(ctx context.Context, id uuid.UUID) (*entity.StoredResult, error) {
	row := r.db.SQL.QueryRowContext(ctx, r.db.rebind(
		`SELECT id, caller_hash, filename, mime_type, status, payload, created_at
		 FROM ocr_results WHERE id = ?`), id.String())
	res, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError("NOT_FOUND", "result not found", common.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("db.result.get.error", "id", id, "error", err)
		return nil, common.NewAppError("DB_ERROR", "get result", errors.Join(common.ErrDatabase, err))
	}
	return res, nil
}

// List returns the newest results first.
func (r *resultRepository) List(ctx context.Context, limit int) ([]entity.StoredResult, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.SQL.QueryContext(ctx, r.db.rebind(
		`SELECT id, caller_hash, filename, mime_type, status, payload, created_at
		 FROM ocr_results ORDER BY created_at DESC, id LIMIT ?`), limit)
	if err != nil {
		r.logger.Error("db.result.list.error", "error", err)
		return nil, common.NewAppError("DB_ERROR", "list results", errors.Join(common.ErrDatabase, err))
	}
	defer func() { _ = rows.Close() }()

	var out []entity.StoredResult
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, common.NewAppError("DB_ERROR", "scan result", errors.Join(common.ErrDatabase, err))
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError("DB_ERROR", "list results", errors.Join(common.ErrDatabase, err))
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(s scanner) (*entity.StoredResult, error) {
	var (
		id, status, payload, created string
		res                          entity.StoredResult
	)
	if err := s.Scan(&id, &res.CallerHash, &res.Filename, &res.MIMEType, &status, &payload, &created); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse id %q: %w", id, err)
	}
	res.ID = parsed
	res.Status = constants.ResultStatus(status)
	if err := json.Unmarshal([]byte(payload), &res.Result); err != nil {
		return nil, fmt.Errorf("decode payload %s: %w", id, err)
	}
	if res.Result.ID == "" {
		res.Result.ID = id
	}
	if res.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	return &res, nil
}
