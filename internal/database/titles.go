package database

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/scythe504/linkrace-backend/internal"
	"github.com/scythe504/linkrace-backend/internal/game"
)

// TitleStore resolves content references into display titles and keeps a
// hit count per reference.
type TitleStore struct {
	pool *pgxpool.Pool
}

func NewTitleStore(pool *pgxpool.Pool) *TitleStore {
	return &TitleStore{pool: pool}
}

const upsertTitle = `
INSERT INTO titles (key, title)
VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE
SET hits = titles.hits + 1, updated_at = now()
RETURNING title`

func (s *TitleStore) Resolve(ctx context.Context, ref string) (string, error) {
	title := TitleFromRef(ref)
	if title == "" {
		return "", game.ErrTitleNotFound
	}

	var stored string
	err := s.pool.QueryRow(ctx, upsertTitle, internal.NormalizeRef(ref), title).Scan(&stored)
	if err != nil {
		return "", fmt.Errorf("upsert title: %w", err)
	}
	return stored, nil
}

// Hits returns how often a reference was resolved, 0 if never.
func (s *TitleStore) Hits(ctx context.Context, ref string) (int64, error) {
	var hits int64
	err := s.pool.QueryRow(ctx, `SELECT hits FROM titles WHERE key = $1`, internal.NormalizeRef(ref)).Scan(&hits)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("select hits: %w", err)
	}
	return hits, nil
}

// TitleFromRef turns "https://en.wikipedia.org/wiki/Go_(programming_language)"
// or "go_(programming_language)" into "Go (programming language)".
func TitleFromRef(ref string) string {
	ref = strings.TrimSpace(ref)
	if i := strings.Index(ref, "/wiki/"); i >= 0 {
		ref = ref[i+len("/wiki/"):]
	}
	if i := strings.IndexAny(ref, "#?"); i >= 0 {
		ref = ref[:i]
	}
	if unescaped, err := url.PathUnescape(ref); err == nil {
		ref = unescaped
	}
	ref = strings.Join(strings.Fields(strings.ReplaceAll(ref, "_", " ")), " ")
	if ref == "" {
		return ""
	}
	first, size := utf8.DecodeRuneInString(ref)
	return string(unicode.ToUpper(first)) + ref[size:]
}
