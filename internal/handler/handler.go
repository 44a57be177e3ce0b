// Package handler содержит HTTP-обработчики API сервиса мини-магазина.
// Каждый ресурс принимает POST-запрос вида {action, ...params} и
// отвечает конвертом {code, kind, message, data}.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/lizhen986988664/distributionMini/internal/middleware"
	"github.com/lizhen986988664/distributionMini/internal/model"
	"github.com/lizhen986988664/distributionMini/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Login(ctx context.Context, code string) (*service.LoginResult, error)
	GetUserInfo(ctx context.Context, openid string) (*model.User, error)
	UpdateUserInfo(ctx context.Context, openid string, p service.UpdateUserInfoParams) (*model.User, error)

	CreateProduct(ctx context.Context, p service.CreateProductParams) (*model.Product, error)
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	ListProducts(ctx context.Context, category string, page, pageSize int) (*service.ProductList, error)

	CreateCoupon(ctx context.Context, p service.CreateCouponParams) (*model.Coupon, error)
	ReceiveCoupon(ctx context.Context, openid string, couponID int64) (*model.UserCoupon, error)
	UseCoupon(ctx context.Context, openid string, userCouponID, orderID int64) (*model.UserCoupon, error)
	GetMyCoupons(ctx context.Context, openid string) ([]model.UserCoupon, error)
	GetAvailableCoupons(ctx context.Context, openid string, orderAmount *float64) ([]model.UserCoupon, error)

	CreateCard(ctx context.Context, openid string, p service.CreateCardParams) (*model.StarCard, error)
	GetMyCards(ctx context.Context, openid string) ([]model.StarCard, error)
	ShareCard(ctx context.Context, openid string, cardID int64) (*service.ShareResult, error)
	ReceiveCard(ctx context.Context, receiverOpenID, shareCode string) (*service.ReceiveResult, error)
	GetStats(ctx context.Context, openid string) (*model.StarCardStats, error)

	CreateOrder(ctx context.Context, openid string, p service.CreateOrderParams) (*model.Order, error)
	CancelOrder(ctx context.Context, openid string, orderID int64) (*model.Order, error)
	ConfirmOrder(ctx context.Context, openid string, orderID int64) (*model.Order, error)
	ShipOrder(ctx context.Context, orderID int64) (*model.Order, error)
	GetOrder(ctx context.Context, openid string, orderID int64) (*model.Order, error)
	ListOrders(ctx context.Context, openid string, status model.OrderStatus, page, pageSize int) (*service.OrderList, error)
}

// Handler реализует HTTP-обработчики API сервиса мини-магазина.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

// readAction читает тело запроса и извлекает имя действия. Тело
// возвращается целиком, чтобы обработчик действия разобрал свои
// параметры из того же JSON.
func readAction(r *http.Request) (string, []byte, error) {
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return "", nil, err
	}

	var req struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return "", nil, err
	}
	return req.Action, body, nil
}
