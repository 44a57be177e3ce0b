package service

import (
	"context"
	"fmt"
	"time"

	"github.com/lizhen986988664/distributionMini/internal/model"
	"github.com/lizhen986988664/distributionMini/internal/repository"
)

// discountFor вычисляет размер скидки купона для заданной суммы заказа.
// Для фиксированного купона скидка равна номиналу, для процентного —
// доле суммы заказа, ограниченной maxDiscount (если задан). Результат
// не превышает сумму заказа и не бывает отрицательным.
func discountFor(uc *model.UserCoupon, orderAmount float64) float64 {
	var discount float64
	switch uc.Type {
	case model.CouponTypeFixed:
		discount = uc.Amount
	case model.CouponTypeDiscount:
		discount = orderAmount * (1 - uc.Discount/100)
		if uc.MaxDiscount > 0 && discount > uc.MaxDiscount {
			discount = uc.MaxDiscount
		}
	}
	if discount < 0 {
		discount = 0
	}
	if discount > orderAmount {
		discount = orderAmount
	}
	return round2(discount)
}

// validateCoupon проверяет применимость экземпляра купона к сумме
// заказа: купон должен принадлежать пользователю, быть в статусе
// received, не быть просроченным и проходить порог минимальной суммы.
func (s *Service) validateCoupon(ctx context.Context, userCouponID int64, openid string, orderAmount float64) (*model.UserCoupon, error) {
	uc, err := s.repo.GetUserCoupon(ctx, userCouponID, openid)
	if err != nil {
		return nil, err
	}
	if uc.Status != model.UserCouponStatusReceived {
		return nil, repository.ErrCouponUnavailable
	}
	if time.Now().After(uc.ExpireTime) {
		return nil, repository.ErrCouponExpired
	}
	if orderAmount < uc.MinAmount {
		return nil, repository.ErrCouponMinAmount
	}
	return uc, nil
}

// CreateCouponParams содержит параметры создания шаблона купона.
type CreateCouponParams struct {
	Name             string     `json:"name"`
	Description      string     `json:"description"`
	Type             string     `json:"type"`
	Amount           float64    `json:"amount"`
	MinAmount        float64    `json:"minAmount"`
	Discount         float64    `json:"discount"`
	MaxDiscount      float64    `json:"maxDiscount"`
	ValidDays        int32      `json:"validDays"`
	Stock            int64      `json:"totalCount"`
	LimitPerUser     int32      `json:"limitPerUser"`
	ReceiveStartTime *time.Time `json:"receiveStartTime,omitempty"`
	ReceiveEndTime   *time.Time `json:"receiveEndTime,omitempty"`
}

// CreateCoupon создаёт шаблон купона.
func (s *Service) CreateCoupon(ctx context.Context, p CreateCouponParams) (*model.Coupon, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("%w: coupon name is required", ErrValidation)
	}
	ctype := model.CouponType(p.Type)
	switch ctype {
	case model.CouponTypeFixed:
		if p.Amount <= 0 {
			return nil, fmt.Errorf("%w: fixed coupon amount must be positive", ErrValidation)
		}
	case model.CouponTypeDiscount:
		if p.Discount <= 0 || p.Discount >= 100 {
			return nil, fmt.Errorf("%w: discount must be between 0 and 100", ErrValidation)
		}
	default:
		return nil, fmt.Errorf("%w: unknown coupon type %q", ErrValidation, p.Type)
	}
	if p.Stock <= 0 {
		return nil, fmt.Errorf("%w: coupon stock must be positive", ErrValidation)
	}
	if p.MinAmount < 0 {
		return nil, fmt.Errorf("%w: minAmount must not be negative", ErrValidation)
	}
	if p.LimitPerUser <= 0 {
		p.LimitPerUser = 1
	}
	if p.ValidDays <= 0 {
		p.ValidDays = 30
	}

	coupon := &model.Coupon{
		Name:             p.Name,
		Description:      p.Description,
		Type:             ctype,
		Amount:           p.Amount,
		MinAmount:        p.MinAmount,
		Discount:         p.Discount,
		MaxDiscount:      p.MaxDiscount,
		ValidDays:        p.ValidDays,
		Stock:            p.Stock,
		LimitPerUser:     p.LimitPerUser,
		ReceiveStartTime: p.ReceiveStartTime,
		ReceiveEndTime:   p.ReceiveEndTime,
		Status:           model.CouponStatusAvailable,
	}
	return s.repo.CreateCoupon(ctx, coupon)
}

// ReceiveCoupon выдаёт пользователю экземпляр купона из шаблона.
func (s *Service) ReceiveCoupon(ctx context.Context, openid string, couponID int64) (*model.UserCoupon, error) {
	if couponID <= 0 {
		return nil, fmt.Errorf("%w: invalid coupon id", ErrValidation)
	}
	return s.repo.ReceiveCoupon(ctx, openid, couponID)
}

// UseCoupon помечает купон пользователя использованным в заказе.
// Купон должен принадлежать пользователю, быть в статусе received и не
// быть просроченным. Возвращает обновлённый экземпляр купона.
func (s *Service) UseCoupon(ctx context.Context, openid string, userCouponID, orderID int64) (*model.UserCoupon, error) {
	if userCouponID <= 0 {
		return nil, fmt.Errorf("%w: invalid user coupon id", ErrValidation)
	}
	if orderID <= 0 {
		return nil, fmt.Errorf("%w: invalid order id", ErrValidation)
	}
	if err := s.repo.RedeemUserCoupon(ctx, userCouponID, openid, orderID); err != nil {
		return nil, err
	}
	return s.repo.GetUserCoupon(ctx, userCouponID, openid)
}

// GetMyCoupons возвращает все купоны пользователя.
func (s *Service) GetMyCoupons(ctx context.Context, openid string) ([]model.UserCoupon, error) {
	return s.repo.GetUserCoupons(ctx, openid)
}

// GetAvailableCoupons возвращает купоны пользователя, применимые к
// заказу. При orderAmount == nil порог минимальной суммы не проверяется.
func (s *Service) GetAvailableCoupons(ctx context.Context, openid string, orderAmount *float64) ([]model.UserCoupon, error) {
	return s.repo.GetAvailableUserCoupons(ctx, openid, orderAmount)
}
