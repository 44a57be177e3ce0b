package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lizhen986988664/distributionMini/internal/model"
)

// CreateProduct добавляет товар в каталог.
func (r *PostgresRepository) CreateProduct(ctx context.Context, p *model.Product) (*model.Product, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO products (name, category, price, stock, sales, status)
		 VALUES ($1, $2, $3, $4, 0, $5)
		 RETURNING id, create_time, update_time`,
		p.Name, p.Category, toCents(p.Price), p.Stock, string(p.Status),
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert product: %w", err)
	}
	return p, nil
}

// GetProduct возвращает товар по идентификатору.
func (r *PostgresRepository) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, category, price, stock, sales, status, create_time, update_time
		 FROM products WHERE id = $1`,
		id,
	)

	var (
		p      model.Product
		price  int64
		status string
	)
	err := row.Scan(&p.ID, &p.Name, &p.Category, &price, &p.Stock, &p.Sales, &status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	p.Price = fromCents(price)
	p.Status = model.ProductStatus(status)
	return &p, nil
}

// ListProducts возвращает страницу активных товаров и общее количество.
func (r *PostgresRepository) ListProducts(ctx context.Context, category string, page, pageSize int) ([]model.Product, int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM products
		 WHERE status = 'active' AND ($1 = '' OR category = $1)`,
		category,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, name, category, price, stock, sales, status, create_time, update_time
		 FROM products
		 WHERE status = 'active' AND ($1 = '' OR category = $1)
		 ORDER BY create_time DESC
		 OFFSET $2 LIMIT $3`,
		category, (page-1)*pageSize, pageSize,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var res []model.Product
	for rows.Next() {
		var (
			p      model.Product
			price  int64
			status string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &price, &p.Stock, &p.Sales, &status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		p.Price = fromCents(price)
		p.Status = model.ProductStatus(status)
		res = append(res, p)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return res, total, nil
}

// AdjustStock атомарно изменяет остаток товара; отрицательная дельта — продажа,
// положительная — возврат. Счётчик продаж двигается зеркально. Условие в WHERE
// гарантирует, что остаток не уйдёт в минус: при нехватке возвращается
// ErrOutOfStock, а остаток не меняется.
func (r *PostgresRepository) AdjustStock(ctx context.Context, productID, delta int64) (int64, error) {
	var newStock int64
	err := r.pool.QueryRow(ctx,
		`UPDATE products
		 SET stock = stock + $2, sales = sales - $2, update_time = now()
		 WHERE id = $1 AND stock + $2 >= 0
		 RETURNING stock`,
		productID, delta,
	).Scan(&newStock)
	if err == nil {
		return newStock, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("adjust stock: %w", err)
	}

	// Ноль строк: либо товара нет, либо остатка не хватило.
	var exists bool
	if err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`,
		productID,
	).Scan(&exists); err != nil {
		return 0, fmt.Errorf("check product: %w", err)
	}
	if !exists {
		return 0, ErrProductNotFound
	}
	return 0, ErrOutOfStock
}
