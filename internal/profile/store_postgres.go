package profile

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	dom "didhub/internal/domain"
	"didhub/pkg/domain"
	dErrors "didhub/pkg/domain-errors"
)

// PostgresCheckpointStore persists checkpoints so a create interrupted by a
// crash can be resumed from another instance.
type PostgresCheckpointStore struct {
	pool *pgxpool.Pool
}

func NewPostgresCheckpointStore(pool *pgxpool.Pool) *PostgresCheckpointStore {
	return &PostgresCheckpointStore{pool: pool}
}

// Migrate creates the backing table. Idempotent; called at startup.
func (s *PostgresCheckpointStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS profile_checkpoints (
			did              TEXT PRIMARY KEY,
			step             TEXT NOT NULL,
			document_address TEXT NOT NULL DEFAULT '',
			profile_address  TEXT NOT NULL DEFAULT '',
			payload          JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at       TIMESTAMPTZ NOT NULL,
			updated_at       TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "migrating checkpoint table")
	}
	return nil
}

type checkpointPayload struct {
	Attributes  map[string]string `json:"attributes,omitempty"`
	AlsoKnownAs []string          `json:"alsoKnownAs,omitempty"`
	Services    []dom.Service     `json:"services,omitempty"`
}

func (s *PostgresCheckpointStore) Save(ctx context.Context, cp Checkpoint) error {
	payload, err := json.Marshal(checkpointPayload{
		Attributes:  cp.Attributes,
		AlsoKnownAs: cp.AlsoKnownAs,
		Services:    cp.Services,
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "encoding checkpoint payload")
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO profile_checkpoints
			(did, step, document_address, profile_address, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (did) DO UPDATE SET
			step = EXCLUDED.step,
			document_address = EXCLUDED.document_address,
			profile_address = EXCLUDED.profile_address,
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at`,
		cp.DID.String(), string(cp.Step), cp.DocumentAddress.String(), cp.ProfileAddress.String(),
		payload, cp.CreatedAt, cp.UpdatedAt)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "saving checkpoint")
	}
	return nil
}

func (s *PostgresCheckpointStore) Load(ctx context.Context, did domain.DID) (Checkpoint, error) {
	var (
		cp         Checkpoint
		rawDID     string
		step       string
		docAddr    string
		profAddr   string
		rawPayload []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT did, step, document_address, profile_address, payload, created_at, updated_at
		FROM profile_checkpoints WHERE did = $1`, did.String()).
		Scan(&rawDID, &step, &docAddr, &profAddr, &rawPayload, &cp.CreatedAt, &cp.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Checkpoint{}, dErrors.Newf(dErrors.CodeNotFound, "no checkpoint for %s", did)
	}
	if err != nil {
		return Checkpoint{}, dErrors.Wrap(err, dErrors.CodeInternal, "loading checkpoint")
	}

	cp.DID = domain.DID(rawDID)
	cp.Step = Step(step)
	cp.DocumentAddress = domain.Address(docAddr)
	cp.ProfileAddress = domain.Address(profAddr)
	var payload checkpointPayload
	if err := json.Unmarshal(rawPayload, &payload); err != nil {
		return Checkpoint{}, dErrors.Wrap(err, dErrors.CodeInternal, "decoding checkpoint payload")
	}
	cp.Attributes = payload.Attributes
	cp.AlsoKnownAs = payload.AlsoKnownAs
	cp.Services = payload.Services
	return cp, nil
}

func (s *PostgresCheckpointStore) Clear(ctx context.Context, did domain.DID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM profile_checkpoints WHERE did = $1`, did.String())
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "clearing checkpoint")
	}
	return nil
}
