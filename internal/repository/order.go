package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lizhen986988664/distributionMini/internal/model"
)

// CreateOrder сохраняет заказ вместе с позициями. Повторная попытка с тем же
// request_id упирается в уникальный индекс и возвращает ErrDuplicateRequest.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o *model.Order) (*model.Order, error) {
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var requestID *string
		if o.RequestID != "" {
			requestID = &o.RequestID
		}

		err := tx.QueryRow(ctx,
			`INSERT INTO orders (order_no, openid, receiver_name, receiver_phone, receiver_address,
			                     payment_method, user_coupon_id, total_amount, discount_amount,
			                     final_amount, total_quantity, status, remark, request_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 'pending', $12, $13)
			 RETURNING id, create_time, update_time`,
			o.OrderNo, o.OpenID, o.Receiver.Name, o.Receiver.Phone, o.Receiver.Address,
			string(o.PaymentMethod), o.UserCouponID, toCents(o.TotalAmount),
			toCents(o.DiscountAmount), toCents(o.FinalAmount), o.TotalQuantity,
			o.Remark, requestID,
		).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateRequest
			}
			return fmt.Errorf("insert order: %w", err)
		}

		for _, item := range o.Items {
			_, err := tx.Exec(ctx,
				`INSERT INTO order_items (order_id, product_id, name, price, quantity)
				 VALUES ($1, $2, $3, $4, $5)`,
				o.ID, item.ProductID, item.Name, toCents(item.Price), item.Quantity,
			)
			if err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.Status = model.OrderStatusPending
	return o, nil
}

// GetOrder возвращает заказ с позициями по идентификатору.
func (r *PostgresRepository) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, order_no, openid, receiver_name, receiver_phone, receiver_address,
		        payment_method, user_coupon_id, total_amount, discount_amount, final_amount,
		        total_quantity, status, remark, request_id, payment_time, cancel_time,
		        complete_time, create_time, update_time
		 FROM orders WHERE id = $1`,
		id,
	)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := r.orderItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

// GetOrderByRequestID возвращает ранее созданный заказ по ключу идемпотентности.
func (r *PostgresRepository) GetOrderByRequestID(ctx context.Context, openid, requestID string) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, order_no, openid, receiver_name, receiver_phone, receiver_address,
		        payment_method, user_coupon_id, total_amount, discount_amount, final_amount,
		        total_quantity, status, remark, request_id, payment_time, cancel_time,
		        complete_time, create_time, update_time
		 FROM orders WHERE openid = $1 AND request_id = $2`,
		openid, requestID,
	)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order by request id: %w", err)
	}

	items, err := r.orderItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

// ListOrders возвращает страницу заказов пользователя, свежие первыми.
func (r *PostgresRepository) ListOrders(ctx context.Context, openid string, status model.OrderStatus, page, pageSize int) ([]model.Order, int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders
		 WHERE openid = $1 AND ($2 = '' OR status = $2)`,
		openid, string(status),
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, order_no, openid, receiver_name, receiver_phone, receiver_address,
		        payment_method, user_coupon_id, total_amount, discount_amount, final_amount,
		        total_quantity, status, remark, request_id, payment_time, cancel_time,
		        complete_time, create_time, update_time
		 FROM orders
		 WHERE openid = $1 AND ($2 = '' OR status = $2)
		 ORDER BY create_time DESC
		 OFFSET $3 LIMIT $4`,
		openid, string(status), (page-1)*pageSize, pageSize,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var res []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		res = append(res, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	for i := range res {
		items, err := r.orderItems(ctx, res[i].ID)
		if err != nil {
			return nil, 0, err
		}
		res[i].Items = items
	}

	return res, total, nil
}

// TransitionOrder переводит заказ из from в to. Условный UPDATE не даёт
// выполнить переход из другого статуса: ноль строк — ErrInvalidOrderState.
// Поле времени проставляется по целевому статусу.
func (r *PostgresRepository) TransitionOrder(ctx context.Context, id int64, from, to model.OrderStatus) error {
	var column string
	switch to {
	case model.OrderStatusPaid:
		column = "payment_time"
	case model.OrderStatusCancelled:
		column = "cancel_time"
	case model.OrderStatusCompleted:
		column = "complete_time"
	}

	query := `UPDATE orders SET status = $3, update_time = now()`
	if column != "" {
		query += `, ` + column + ` = now()`
	}
	query += ` WHERE id = $1 AND status = $2`

	cmdTag, err := r.pool.Exec(ctx, query, id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("transition order: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrInvalidOrderState
	}
	return nil
}

func (r *PostgresRepository) orderItems(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT product_id, name, price, quantity FROM order_items WHERE order_id = $1 ORDER BY id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	var items []model.OrderItem
	for rows.Next() {
		var (
			item  model.OrderItem
			price int64
		)
		if err := rows.Scan(&item.ProductID, &item.Name, &price, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		item.Price = fromCents(price)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return items, nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o                      model.Order
		total, discount, final int64
		paymentMethod, status  string
		requestID              *string
	)
	err := row.Scan(&o.ID, &o.OrderNo, &o.OpenID, &o.Receiver.Name, &o.Receiver.Phone,
		&o.Receiver.Address, &paymentMethod, &o.UserCouponID, &total, &discount, &final,
		&o.TotalQuantity, &status, &o.Remark, &requestID, &o.PaymentTime, &o.CancelTime,
		&o.CompleteTime, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}

	o.PaymentMethod = model.PaymentMethod(paymentMethod)
	o.Status = model.OrderStatus(status)
	o.TotalAmount = fromCents(total)
	o.DiscountAmount = fromCents(discount)
	o.FinalAmount = fromCents(final)
	if requestID != nil {
		o.RequestID = *requestID
	}
	return &o, nil
}
