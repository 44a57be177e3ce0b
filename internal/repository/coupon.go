package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lizhen986988664/distributionMini/internal/model"
)

// CreateCoupon сохраняет шаблон купона.
func (r *PostgresRepository) CreateCoupon(ctx context.Context, c *model.Coupon) (*model.Coupon, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO coupons (name, description, type, amount, min_amount, discount, max_discount,
		                      valid_days, stock, limit_per_user, receive_start_time, receive_end_time, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING id, create_time, update_time`,
		c.Name, c.Description, string(c.Type), toCents(c.Amount), toCents(c.MinAmount),
		c.Discount, toCents(c.MaxDiscount), c.ValidDays, c.Stock, c.LimitPerUser,
		c.ReceiveStartTime, c.ReceiveEndTime, string(c.Status),
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert coupon: %w", err)
	}
	return c, nil
}

// ReceiveCoupon выдаёт пользователю экземпляр купона по шаблону.
// Шаблон блокируется на время проверки лимитов, чтобы выдача сверх запаса
// или сверх лимита на пользователя была невозможна при параллельных запросах.
func (r *PostgresRepository) ReceiveCoupon(ctx context.Context, openid string, couponID int64) (*model.UserCoupon, error) {
	var uc *model.UserCoupon
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`SELECT name, description, type, amount, min_amount, discount, max_discount,
			        valid_days, stock, limit_per_user, receive_start_time, receive_end_time, status
			 FROM coupons WHERE id = $1 FOR UPDATE`,
			couponID,
		)

		var (
			c                       model.Coupon
			amount, minAmt, maxDisc int64
			ctype, status           string
		)
		err := row.Scan(&c.Name, &c.Description, &ctype, &amount, &minAmt, &c.Discount, &maxDisc,
			&c.ValidDays, &c.Stock, &c.LimitPerUser, &c.ReceiveStartTime, &c.ReceiveEndTime, &status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrCouponNotFound
			}
			return fmt.Errorf("lock coupon: %w", err)
		}

		c.Type = model.CouponType(ctype)

		now := time.Now()
		if model.CouponStatus(status) != model.CouponStatusAvailable {
			return ErrCouponUnavailable
		}
		if c.Stock <= 0 {
			return ErrCouponOutOfStock
		}
		if c.ReceiveStartTime != nil && c.ReceiveStartTime.After(now) {
			return ErrCouponUnavailable
		}
		if c.ReceiveEndTime != nil && c.ReceiveEndTime.Before(now) {
			return ErrCouponUnavailable
		}

		if c.LimitPerUser > 0 {
			var count int32
			err = tx.QueryRow(ctx,
				`SELECT COUNT(*) FROM user_coupons
				 WHERE openid = $1 AND coupon_id = $2`,
				openid, couponID,
			).Scan(&count)
			if err != nil {
				return fmt.Errorf("count user coupons: %w", err)
			}
			if count >= c.LimitPerUser {
				return ErrCouponLimitReached
			}
		}

		_, err = tx.Exec(ctx,
			`UPDATE coupons SET stock = stock - 1, update_time = now() WHERE id = $1`,
			couponID,
		)
		if err != nil {
			return fmt.Errorf("decrement coupon stock: %w", err)
		}

		validDays := c.ValidDays
		if validDays <= 0 {
			validDays = 30
		}
		expire := now.Add(time.Duration(validDays) * 24 * time.Hour)

		uc = &model.UserCoupon{
			OpenID:      openid,
			CouponID:    couponID,
			Name:        c.Name,
			Description: c.Description,
			Type:        c.Type,
			Amount:      fromCents(amount),
			MinAmount:   fromCents(minAmt),
			Discount:    c.Discount,
			MaxDiscount: fromCents(maxDisc),
			Status:      model.UserCouponStatusReceived,
			ExpireTime:  expire,
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO user_coupons (openid, coupon_id, name, description, type, amount, min_amount,
			                           discount, max_discount, status, expire_time)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'received', $10)
			 RETURNING id, receive_time`,
			openid, couponID, c.Name, c.Description, string(c.Type), amount, minAmt,
			c.Discount, maxDisc, expire,
		).Scan(&uc.ID, &uc.ReceiveTime)
		if err != nil {
			return fmt.Errorf("insert user coupon: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return uc, nil
}

// GetUserCoupon возвращает экземпляр купона пользователя по идентификатору.
func (r *PostgresRepository) GetUserCoupon(ctx context.Context, id int64, openid string) (*model.UserCoupon, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, openid, coupon_id, name, description, type, amount, min_amount,
		        discount, max_discount, status, order_id, expire_time, receive_time, use_time
		 FROM user_coupons WHERE id = $1 AND openid = $2`,
		id, openid,
	)

	uc, err := scanUserCoupon(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCouponNotFound
		}
		return nil, fmt.Errorf("get user coupon: %w", err)
	}
	return uc, nil
}

// GetUserCoupons возвращает все купоны пользователя, свежие первыми.
func (r *PostgresRepository) GetUserCoupons(ctx context.Context, openid string) ([]model.UserCoupon, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, openid, coupon_id, name, description, type, amount, min_amount,
		        discount, max_discount, status, order_id, expire_time, receive_time, use_time
		 FROM user_coupons
		 WHERE openid = $1
		 ORDER BY receive_time DESC`,
		openid,
	)
	if err != nil {
		return nil, fmt.Errorf("select user coupons: %w", err)
	}
	defer rows.Close()

	return collectUserCoupons(rows)
}

// GetAvailableUserCoupons возвращает неиспользованные и непросроченные купоны.
// Если передана сумма заказа, остаются только купоны с подходящим порогом.
func (r *PostgresRepository) GetAvailableUserCoupons(ctx context.Context, openid string, orderAmount *float64) ([]model.UserCoupon, error) {
	var minCents int64 = -1
	if orderAmount != nil {
		minCents = toCents(*orderAmount)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, openid, coupon_id, name, description, type, amount, min_amount,
		        discount, max_discount, status, order_id, expire_time, receive_time, use_time
		 FROM user_coupons
		 WHERE openid = $1 AND status = 'received' AND expire_time >= now()
		   AND ($2 < 0 OR min_amount <= $2)
		 ORDER BY expire_time ASC`,
		openid, minCents,
	)
	if err != nil {
		return nil, fmt.Errorf("select available coupons: %w", err)
	}
	defer rows.Close()

	return collectUserCoupons(rows)
}

// RedeemUserCoupon переводит купон received -> used с привязкой к заказу.
// Условный UPDATE гарантирует не более одного успешного использования.
func (r *PostgresRepository) RedeemUserCoupon(ctx context.Context, id int64, openid string, orderID int64) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE user_coupons
		 SET status = 'used', order_id = $3, use_time = now(), update_time = now()
		 WHERE id = $1 AND openid = $2 AND status = 'received' AND expire_time >= now()`,
		id, openid, orderID,
	)
	if err != nil {
		return fmt.Errorf("redeem user coupon: %w", err)
	}
	if cmdTag.RowsAffected() == 1 {
		return nil
	}

	// Различаем причину отказа по текущему состоянию купона.
	uc, err := r.GetUserCoupon(ctx, id, openid)
	if err != nil {
		return err
	}
	if uc.Status == model.UserCouponStatusReceived && uc.ExpireTime.Before(time.Now()) {
		return ErrCouponExpired
	}
	return ErrCouponUnavailable
}

// ReleaseUserCoupon возвращает купон из used в received при отмене заказа.
// Повторный вызов для уже возвращённого купона — не ошибка.
func (r *PostgresRepository) ReleaseUserCoupon(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE user_coupons
		 SET status = 'received', order_id = NULL, use_time = NULL, update_time = now()
		 WHERE id = $1 AND status = 'used'`,
		id,
	)
	if err != nil {
		return fmt.Errorf("release user coupon: %w", err)
	}
	return nil
}

func scanUserCoupon(row pgx.Row) (*model.UserCoupon, error) {
	var (
		uc                      model.UserCoupon
		amount, minAmt, maxDisc int64
		ctype, status           string
	)
	err := row.Scan(&uc.ID, &uc.OpenID, &uc.CouponID, &uc.Name, &uc.Description, &ctype,
		&amount, &minAmt, &uc.Discount, &maxDisc, &status, &uc.OrderID,
		&uc.ExpireTime, &uc.ReceiveTime, &uc.UsedAt)
	if err != nil {
		return nil, err
	}

	uc.Type = model.CouponType(ctype)
	uc.Status = model.UserCouponStatus(status)
	uc.Amount = fromCents(amount)
	uc.MinAmount = fromCents(minAmt)
	uc.MaxDiscount = fromCents(maxDisc)
	return &uc, nil
}

func collectUserCoupons(rows pgx.Rows) ([]model.UserCoupon, error) {
	var res []model.UserCoupon
	for rows.Next() {
		uc, err := scanUserCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user coupon: %w", err)
		}
		res = append(res, *uc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}
