package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pairing-buds/companion/internal/model/user"
)

// PostgresProfileStore reads user profiles from the relational store owned by
// the account service. This adapter is read-only: signup and survey scoring
// happen upstream.
type PostgresProfileStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects a profile store using the given DSN.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresProfileStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresProfileStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PostgresProfileStore) Close() {
	s.pool.Close()
}

// GetProfile fetches the profile row for the user.
func (s *PostgresProfileStore) GetProfile(ctx context.Context, userID string) (user.Profile, error) {
	const query = `
SELECT user_id, user_name, birth_date,
       seclusion_score, openness_score, sociability_score,
       routine_score, quietness_score, expression_score
FROM users WHERE user_id = $1`

	var (
		p         user.Profile
		birthDate *time.Time
	)
	err := s.pool.QueryRow(ctx, query, userID).Scan(
		&p.ID, &p.Name, &birthDate,
		&p.SeclusionScore, &p.OpennessScore, &p.SociabilityScore,
		&p.RoutineScore, &p.QuietnessScore, &p.ExpressionScore,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return user.Profile{}, ErrProfileNotFound
	}
	if err != nil {
		return user.Profile{}, fmt.Errorf("query profile: %w", err)
	}
	if birthDate != nil {
		p.BirthDate = *birthDate
	}
	return p, nil
}

var _ ProfileStore = (*PostgresProfileStore)(nil)
