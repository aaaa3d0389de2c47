package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore keeps sealed credentials in the bot_credentials table. Every lookup
// hits the database so rotated secrets apply immediately.
type PGStore struct {
	db  *pgxpool.Pool
	box *SecretBox
}

func NewPGStore(db *pgxpool.Pool, box *SecretBox) *PGStore {
	return &PGStore{db: db, box: box}
}

type PutRequest struct {
	BotID     uuid.UUID
	Provider  string
	Strategy  string
	Name      string
	IsDefault bool
	Payload   map[string]any
}

func (s *PGStore) GetDefaultFor(ctx context.Context, botID uuid.UUID, provider, strategy string) (Credentials, error) {
	query := `
		SELECT id::text, name, provider, strategy, payload
		FROM bot_credentials
		WHERE bot_id = $1 AND provider = $2 AND strategy = $3
		ORDER BY is_default DESC, created_at DESC
		LIMIT 1`

	var (
		id     string
		name   string
		prov   string
		strat  string
		sealed []byte
	)
	err := s.db.QueryRow(ctx, query, botID, provider, strategy).Scan(&id, &name, &prov, &strat, &sealed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query credentials: %w", err)
	}

	plaintext, err := s.box.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("credential %s: %w", id, err)
	}
	payload := map[string]any{}
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, fmt.Errorf("credential %s: decoding payload: %w", id, err)
	}

	return Credentials{
		"id":       id,
		"name":     name,
		"provider": prov,
		"strategy": strat,
		"payload":  payload,
	}, nil
}

// Put seals and stores a credential. A new default replaces the previous
// default of the same bot, provider and strategy.
func (s *PGStore) Put(ctx context.Context, req PutRequest) (uuid.UUID, error) {
	plaintext, err := json.Marshal(req.Payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("encoding payload: %w", err)
	}
	sealed, err := s.box.Seal(plaintext)
	if err != nil {
		return uuid.Nil, err
	}

	id := uuid.New()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if req.IsDefault {
		if _, err := tx.Exec(ctx, `
			UPDATE bot_credentials SET is_default = false, updated_at = now()
			WHERE bot_id = $1 AND provider = $2 AND strategy = $3 AND is_default`,
			req.BotID, req.Provider, req.Strategy); err != nil {
			return uuid.Nil, fmt.Errorf("clear previous default: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO bot_credentials (id, bot_id, provider, strategy, name, is_default, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, req.BotID, req.Provider, req.Strategy, req.Name, req.IsDefault, sealed); err != nil {
		return uuid.Nil, fmt.Errorf("insert credentials: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}
