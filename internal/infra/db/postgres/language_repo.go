package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v4"

	"telegram-yt-relay/internal/domain"
	"telegram-yt-relay/internal/domain/ports/repository"
)

var _ repository.LanguagePreferenceRepository = (*LanguageRepo)(nil)

type LanguageRepo struct {
	db executor
}

func NewLanguageRepo(db executor) *LanguageRepo {
	return &LanguageRepo{db: db}
}

func (r *LanguageRepo) Get(ctx context.Context, userID int64) (string, error) {
	const q = `SELECT language_code FROM user_languages WHERE user_id=$1;`
	var code string
	if err := pickRow(ctx, r.db, q, userID).Scan(&code); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", wrapPgError(err)
	}
	return code, nil
}

func (r *LanguageRepo) Set(ctx context.Context, userID int64, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO user_languages (user_id, language_code, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (user_id) DO UPDATE SET language_code = EXCLUDED.language_code, updated_at = EXCLUDED.updated_at;`
	return execSQL(ctx, r.db, q, userID, code)
}
