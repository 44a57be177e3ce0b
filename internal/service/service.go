// Package service реализует бизнес-логику сервиса мини-магазина.
package service

import (
	"context"
	"errors"
	"math"

	"go.uber.org/zap"

	"github.com/lizhen986988664/distributionMini/internal/identity"
	"github.com/lizhen986988664/distributionMini/internal/model"
)

// ErrValidation возвращается при некорректных входных данных запроса.
var ErrValidation = errors.New("validation error")

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	GetOrCreateUser(ctx context.Context, openid string) (*model.User, bool, error)
	GetUser(ctx context.Context, openid string) (*model.User, error)
	UpdateUserProfile(ctx context.Context, openid, nickname, avatar, phone, address string) (*model.User, error)

	Credit(ctx context.Context, openid string, amount float64, reason, description string, orderID *int64) (*model.BalanceLog, error)
	Debit(ctx context.Context, openid string, amount float64, reason, description string, orderID *int64) (*model.BalanceLog, error)
	CreditPoints(ctx context.Context, openid string, points int64, reason, description string) (*model.PointsLog, error)

	CreateProduct(ctx context.Context, p *model.Product) (*model.Product, error)
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	ListProducts(ctx context.Context, category string, page, pageSize int) ([]model.Product, int64, error)
	AdjustStock(ctx context.Context, productID, delta int64) (int64, error)

	CreateCoupon(ctx context.Context, c *model.Coupon) (*model.Coupon, error)
	ReceiveCoupon(ctx context.Context, openid string, couponID int64) (*model.UserCoupon, error)
	GetUserCoupon(ctx context.Context, id int64, openid string) (*model.UserCoupon, error)
	GetUserCoupons(ctx context.Context, openid string) ([]model.UserCoupon, error)
	GetAvailableUserCoupons(ctx context.Context, openid string, orderAmount *float64) ([]model.UserCoupon, error)
	RedeemUserCoupon(ctx context.Context, id int64, openid string, orderID int64) error
	ReleaseUserCoupon(ctx context.Context, id int64) error

	CreateStarCard(ctx context.Context, card *model.StarCard, maxActive int) (*model.StarCard, error)
	ListCardsByCreator(ctx context.Context, openid string) ([]model.StarCard, error)
	GetCardForShare(ctx context.Context, cardID int64, openid string) (*model.StarCard, error)
	RedeemStarCard(ctx context.Context, shareCode, receiverOpenID string) (*model.StarCard, *model.StarCardReceive, error)
	GetStarCardStats(ctx context.Context, openid string) (*model.StarCardStats, error)

	CreateOrder(ctx context.Context, o *model.Order) (*model.Order, error)
	GetOrder(ctx context.Context, id int64) (*model.Order, error)
	GetOrderByRequestID(ctx context.Context, openid, requestID string) (*model.Order, error)
	ListOrders(ctx context.Context, openid string, status model.OrderStatus, page, pageSize int) ([]model.Order, int64, error)
	TransitionOrder(ctx context.Context, id int64, from, to model.OrderStatus) error
}

// Service содержит бизнес-логику сервиса мини-магазина.
type Service struct {
	repo           Repository
	identityClient *identity.Client
	logger         *zap.Logger
	strictCoupon   bool
}

// NewService создаёт новый сервис.
func NewService(repo Repository, identityClient *identity.Client, logger *zap.Logger, strictCoupon bool) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:           repo,
		identityClient: identityClient,
		logger:         logger,
		strictCoupon:   strictCoupon,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// round2 округляет сумму до двух знаков. Промежуточные вычисления не
// округляются — только итоговое значение.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
