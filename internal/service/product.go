package service

import (
	"context"
	"fmt"

	"github.com/lizhen986988664/distributionMini/internal/model"
)

// CreateProductParams содержит параметры создания товара.
type CreateProductParams struct {
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
	Stock    int64   `json:"stock"`
}

// CreateProduct создаёт новый товар.
func (s *Service) CreateProduct(ctx context.Context, p CreateProductParams) (*model.Product, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("%w: product name is required", ErrValidation)
	}
	if p.Price <= 0 {
		return nil, fmt.Errorf("%w: product price must be positive", ErrValidation)
	}
	if p.Stock < 0 {
		return nil, fmt.Errorf("%w: product stock must not be negative", ErrValidation)
	}

	product := &model.Product{
		Name:     p.Name,
		Category: p.Category,
		Price:    p.Price,
		Stock:    p.Stock,
		Status:   model.ProductStatusActive,
	}
	return s.repo.CreateProduct(ctx, product)
}

// GetProduct возвращает товар по идентификатору.
func (s *Service) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: invalid product id", ErrValidation)
	}
	return s.repo.GetProduct(ctx, id)
}

// ProductList описывает страницу списка товаров.
type ProductList struct {
	Items    []model.Product `json:"list"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"pageSize"`
}

// ListProducts возвращает страницу товаров с фильтром по категории.
func (s *Service) ListProducts(ctx context.Context, category string, page, pageSize int) (*ProductList, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}
	items, total, err := s.repo.ListProducts(ctx, category, page, pageSize)
	if err != nil {
		return nil, err
	}
	return &ProductList{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}
