package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lizhen986988664/distributionMini/internal/model"
)

// Операции леджера сериализуются по пользователю блокировкой строки users
// (SELECT ... FOR UPDATE): без неё два параллельных списания могли бы
// прочитать один и тот же баланс.

// Credit зачисляет сумму на баланс пользователя и пишет строку журнала.
func (r *PostgresRepository) Credit(ctx context.Context, openid string, amount float64, reason, description string, orderID *int64) (*model.BalanceLog, error) {
	var log *model.BalanceLog
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		log, err = adjustBalanceTx(ctx, tx, openid, toCents(amount), reason, description, orderID)
		return err
	})
	return log, err
}

// Debit списывает сумму с баланса пользователя и пишет строку журнала.
// Возвращает ErrInsufficientBalance без каких-либо изменений, если средств не хватает.
func (r *PostgresRepository) Debit(ctx context.Context, openid string, amount float64, reason, description string, orderID *int64) (*model.BalanceLog, error) {
	var log *model.BalanceLog
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		log, err = adjustBalanceTx(ctx, tx, openid, -toCents(amount), reason, description, orderID)
		return err
	})
	return log, err
}

// adjustBalanceTx изменяет баланс внутри открытой транзакции. Новый баланс и
// строка журнала с balance_before/balance_after пишутся как одно целое.
func adjustBalanceTx(ctx context.Context, tx pgx.Tx, openid string, deltaCents int64, reason, description string, orderID *int64) (*model.BalanceLog, error) {
	var before int64
	err := tx.QueryRow(ctx,
		`SELECT balance FROM users WHERE openid = $1 FOR UPDATE`,
		openid,
	).Scan(&before)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lock user balance: %w", err)
	}

	after := before + deltaCents
	if after < 0 {
		return nil, ErrInsufficientBalance
	}

	_, err = tx.Exec(ctx,
		`UPDATE users SET balance = $2, update_time = now() WHERE openid = $1`,
		openid, after,
	)
	if err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}

	var (
		id        int64
		createdAt time.Time
	)
	err = tx.QueryRow(ctx,
		`INSERT INTO balance_logs (openid, amount, type, description, balance_before, balance_after, order_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, create_time`,
		openid, deltaCents, reason, description, before, after, orderID,
	).Scan(&id, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("insert balance log: %w", err)
	}

	return &model.BalanceLog{
		ID:            id,
		OpenID:        openid,
		Amount:        fromCents(deltaCents),
		Reason:        reason,
		Description:   description,
		BalanceBefore: fromCents(before),
		BalanceAfter:  fromCents(after),
		OrderID:       orderID,
		CreatedAt:     createdAt,
	}, nil
}

// CreditPoints начисляет баллы пользователю и пишет строку журнала баллов.
func (r *PostgresRepository) CreditPoints(ctx context.Context, openid string, points int64, reason, description string) (*model.PointsLog, error) {
	var log *model.PointsLog
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var before int64
		err := tx.QueryRow(ctx,
			`SELECT points FROM users WHERE openid = $1 FOR UPDATE`,
			openid,
		).Scan(&before)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrUserNotFound
			}
			return fmt.Errorf("lock user points: %w", err)
		}

		after := before + points

		_, err = tx.Exec(ctx,
			`UPDATE users SET points = $2, update_time = now() WHERE openid = $1`,
			openid, after,
		)
		if err != nil {
			return fmt.Errorf("update points: %w", err)
		}

		var (
			id        int64
			createdAt time.Time
		)
		err = tx.QueryRow(ctx,
			`INSERT INTO points_logs (openid, points, type, description, points_before, points_after)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id, create_time`,
			openid, points, reason, description, before, after,
		).Scan(&id, &createdAt)
		if err != nil {
			return fmt.Errorf("insert points log: %w", err)
		}

		log = &model.PointsLog{
			ID:           id,
			OpenID:       openid,
			Points:       points,
			Reason:       reason,
			Description:  description,
			PointsBefore: before,
			PointsAfter:  after,
			CreatedAt:    createdAt,
		}
		return nil
	})
	return log, err
}
