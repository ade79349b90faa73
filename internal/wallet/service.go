package wallet

import (
	"context"
	"errors"

	"backend-geomine/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrInvalidAmount = errors.New("amount must not be zero")

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

// Credit records a transaction and applies it to the player's balance.
// Purchases are recorded as negative amounts.
func (s *Service) Credit(ctx context.Context, playerID string, amount float64, description string, kind Kind) (Transaction, error) {
	if amount == 0 {
		return Transaction{}, ErrInvalidAmount
	}
	if kind == KindPurchase && amount > 0 {
		amount = -amount
	}

	tx := Transaction{
		ID:          uuid.NewString(),
		PlayerID:    playerID,
		Kind:        kind,
		Amount:      amount,
		Description: description,
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO wallet_transactions (id, player_id, type, amount, description)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at
	`, tx.ID, tx.PlayerID, string(tx.Kind), tx.Amount, tx.Description)
	if err := row.Scan(&tx.CreatedAt); err != nil {
		return Transaction{}, err
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO wallets (player_id, balance)
		VALUES ($1, $2::numeric + $3::numeric)
		ON CONFLICT (player_id) DO UPDATE SET balance = wallets.balance + $3::numeric, updated_at = now()
	`, playerID, StartingBalance, amount)
	if err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

func (s *Service) Balance(ctx context.Context, playerID string) (Balance, error) {
	b := Balance{PlayerID: playerID}
	err := s.db.QueryRow(ctx, `SELECT balance FROM wallets WHERE player_id=$1`, playerID).Scan(&b.Balance)
	if errors.Is(err, pgx.ErrNoRows) {
		b.Balance = StartingBalance
		return b, nil
	}
	if err != nil {
		return Balance{}, err
	}
	return b, nil
}

func (s *Service) Transactions(ctx context.Context, playerID string, limit int) ([]Transaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, player_id, type, amount, description, created_at
		FROM wallet_transactions WHERE player_id=$1
		ORDER BY created_at DESC
		LIMIT $2
	`, playerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var (
			tx   Transaction
			kind string
		)
		if err := rows.Scan(&tx.ID, &tx.PlayerID, &kind, &tx.Amount, &tx.Description, &tx.CreatedAt); err != nil {
			return nil, err
		}
		tx.Kind = Kind(kind)
		out = append(out, tx)
	}
	return out, rows.Err()
}
