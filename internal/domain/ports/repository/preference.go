package repository

import "context"

type LanguagePreferenceRepository interface {
	// Get returns domain.ErrNotFound when the user never set a language.
	Get(ctx context.Context, userID int64) (string, error)
	Set(ctx context.Context, userID int64, code string) error
}
