package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/lizhen986988664/distributionMini/internal/model"
	"github.com/lizhen986988664/distributionMini/internal/repository"
	"github.com/lizhen986988664/distributionMini/internal/validation"
)

// OrderItemParams описывает позицию корзины при создании заказа.
// Цена берётся из каталога на момент создания, а не из запроса.
type OrderItemParams struct {
	ProductID int64 `json:"productId"`
	Quantity  int64 `json:"quantity"`
}

// CreateOrderParams содержит параметры создания заказа.
type CreateOrderParams struct {
	Items         []OrderItemParams  `json:"items"`
	Receiver      model.ReceiverInfo `json:"receiverInfo"`
	PaymentMethod string             `json:"paymentMethod"`
	UserCouponID  *int64             `json:"couponId,omitempty"`
	Remark        string             `json:"remark"`
	RequestID     string             `json:"requestId"`
}

// CreateOrder создаёт заказ. Шаги применяются от дешёвых проверок к
// дорогим эффектам: валидация и расчёт суммы, списание баланса,
// погашение купона, списание остатков. Если поздний шаг падает после
// успешных ранних, уже применённые эффекты компенсируются; неудачная
// компенсация логируется как инцидент сверки и не скрывается.
func (s *Service) CreateOrder(ctx context.Context, openid string, p CreateOrderParams) (*model.Order, error) {
	if len(p.Items) == 0 {
		return nil, fmt.Errorf("%w: order items are required", ErrValidation)
	}
	if p.Receiver.Name == "" || p.Receiver.Phone == "" || p.Receiver.Address == "" {
		return nil, fmt.Errorf("%w: receiver info is incomplete", ErrValidation)
	}
	method := model.PaymentMethod(p.PaymentMethod)
	if method != model.PaymentMethodBalance && method != model.PaymentMethodWechat {
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrValidation, p.PaymentMethod)
	}
	for _, item := range p.Items {
		if item.ProductID <= 0 || item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: invalid order item", ErrValidation)
		}
	}

	// Повтор запроса с тем же ключом идемпотентности возвращает
	// исходный заказ без побочных эффектов.
	if p.RequestID != "" {
		existing, err := s.repo.GetOrderByRequestID(ctx, openid, p.RequestID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, repository.ErrOrderNotFound) {
			return nil, err
		}
	}

	user, err := s.repo.GetUser(ctx, openid)
	if err != nil {
		return nil, err
	}

	var (
		items         = make([]model.OrderItem, 0, len(p.Items))
		totalAmount   float64
		totalQuantity int64
	)
	for _, item := range p.Items {
		product, err := s.repo.GetProduct(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		if product.Status != model.ProductStatusActive {
			return nil, fmt.Errorf("product %d: %w", product.ID, repository.ErrProductNotFound)
		}
		items = append(items, model.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			Price:     product.Price,
			Quantity:  item.Quantity,
		})
		totalAmount += product.Price * float64(item.Quantity)
		totalQuantity += item.Quantity
	}
	totalAmount = round2(totalAmount)

	var (
		coupon         *model.UserCoupon
		discountAmount float64
	)
	if p.UserCouponID != nil {
		coupon, err = s.validateCoupon(ctx, *p.UserCouponID, openid, totalAmount)
		if err != nil {
			if s.strictCoupon {
				return nil, err
			}
			// Неприменимый купон не отменяет заказ, а просто
			// не даёт скидку.
			s.logger.Warn("coupon not applied",
				zap.String("openid", openid),
				zap.Int64("userCouponId", *p.UserCouponID),
				zap.Error(err))
			coupon = nil
		} else {
			discountAmount = discountFor(coupon, totalAmount)
		}
	}
	finalAmount := round2(totalAmount - discountAmount)

	if method == model.PaymentMethodBalance && user.Balance < finalAmount {
		return nil, repository.ErrInsufficientBalance
	}

	orderNo, err := validation.NewOrderNo()
	if err != nil {
		return nil, fmt.Errorf("generate order number: %w", err)
	}

	order := &model.Order{
		OrderNo:        orderNo,
		OpenID:         openid,
		Items:          items,
		Receiver:       p.Receiver,
		PaymentMethod:  method,
		TotalAmount:    totalAmount,
		DiscountAmount: discountAmount,
		FinalAmount:    finalAmount,
		TotalQuantity:  totalQuantity,
		Status:         model.OrderStatusPending,
		Remark:         p.Remark,
		RequestID:      p.RequestID,
	}
	if coupon != nil {
		order.UserCouponID = &coupon.ID
	}

	order, err = s.repo.CreateOrder(ctx, order)
	if errors.Is(err, repository.ErrDuplicateRequest) {
		return s.repo.GetOrderByRequestID(ctx, openid, p.RequestID)
	}
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	var debited bool
	if method == model.PaymentMethodBalance {
		_, err = s.repo.Debit(ctx, openid, finalAmount, "order_payment", "订单支付："+order.OrderNo, &order.ID)
		if err != nil {
			s.abandonOrder(ctx, order, model.OrderStatusPending)
			return nil, fmt.Errorf("debit balance: %w", err)
		}
		debited = true

		if err := s.repo.TransitionOrder(ctx, order.ID, model.OrderStatusPending, model.OrderStatusPaid); err != nil {
			s.refundOrder(ctx, order)
			s.abandonOrder(ctx, order, model.OrderStatusPending)
			return nil, fmt.Errorf("mark order paid: %w", err)
		}
		order.Status = model.OrderStatusPaid
	}

	var redeemed bool
	if coupon != nil {
		if err := s.repo.RedeemUserCoupon(ctx, coupon.ID, openid, order.ID); err != nil {
			if s.strictCoupon {
				s.compensateOrder(ctx, order, debited, false)
				return nil, fmt.Errorf("redeem coupon: %w", err)
			}
			// Скидка уже учтена в сумме заказа, поэтому потеря
			// погашения требует ручной сверки.
			s.logger.Error("coupon redeem failed after order creation",
				zap.String("reconciliation", "coupon"),
				zap.Int64("orderId", order.ID),
				zap.Int64("userCouponId", coupon.ID),
				zap.Error(err))
		} else {
			redeemed = true
		}
	}

	for i, item := range order.Items {
		if _, err := s.repo.AdjustStock(ctx, item.ProductID, -item.Quantity); err != nil {
			s.restoreStock(ctx, order, order.Items[:i])
			s.compensateOrder(ctx, order, debited, redeemed)
			return nil, fmt.Errorf("decrement stock for product %d: %w", item.ProductID, err)
		}
	}

	return s.repo.GetOrder(ctx, order.ID)
}

// CancelOrder отменяет заказ в статусе pending: возвращает остатки на
// склад и освобождает купон. Побеждает ровно один из конкурентных
// вызовов отмены благодаря условному переходу статуса.
func (s *Service) CancelOrder(ctx context.Context, openid string, orderID int64) (*model.Order, error) {
	order, err := s.GetOrder(ctx, openid, orderID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.TransitionOrder(ctx, order.ID, model.OrderStatusPending, model.OrderStatusCancelled); err != nil {
		return nil, err
	}

	// Переход уже зафиксирован: дальнейшие сбои не откатывают отмену,
	// а поднимают инцидент сверки.
	s.restoreStock(ctx, order, order.Items)
	if order.UserCouponID != nil {
		if err := s.repo.ReleaseUserCoupon(ctx, *order.UserCouponID); err != nil {
			s.logger.Error("coupon release failed after cancellation",
				zap.String("reconciliation", "coupon"),
				zap.Int64("orderId", order.ID),
				zap.Int64("userCouponId", *order.UserCouponID),
				zap.Error(err))
		}
	}

	return s.repo.GetOrder(ctx, order.ID)
}

// ConfirmOrder подтверждает получение заказа и начисляет баллы —
// целую часть итоговой суммы.
func (s *Service) ConfirmOrder(ctx context.Context, openid string, orderID int64) (*model.Order, error) {
	order, err := s.GetOrder(ctx, openid, orderID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.TransitionOrder(ctx, order.ID, model.OrderStatusShipped, model.OrderStatusCompleted); err != nil {
		return nil, err
	}

	points := int64(math.Floor(order.FinalAmount))
	if points > 0 {
		if _, err := s.repo.CreditPoints(ctx, openid, points, "order_complete", "订单完成奖励："+order.OrderNo); err != nil {
			s.logger.Error("points credit failed after completion",
				zap.String("reconciliation", "points"),
				zap.Int64("orderId", order.ID),
				zap.Int64("points", points),
				zap.Error(err))
		}
	}

	return s.repo.GetOrder(ctx, order.ID)
}

// ShipOrder переводит оплаченный заказ в статус shipped. Операция
// служебная и не проверяет владельца.
func (s *Service) ShipOrder(ctx context.Context, orderID int64) (*model.Order, error) {
	if orderID <= 0 {
		return nil, fmt.Errorf("%w: invalid order id", ErrValidation)
	}
	if err := s.repo.TransitionOrder(ctx, orderID, model.OrderStatusPaid, model.OrderStatusShipped); err != nil {
		return nil, err
	}
	return s.repo.GetOrder(ctx, orderID)
}

// GetOrder возвращает заказ, проверяя владельца.
func (s *Service) GetOrder(ctx context.Context, openid string, orderID int64) (*model.Order, error) {
	if orderID <= 0 {
		return nil, fmt.Errorf("%w: invalid order id", ErrValidation)
	}
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.OpenID != openid {
		return nil, repository.ErrForbidden
	}
	return order, nil
}

// OrderList описывает страницу списка заказов.
type OrderList struct {
	Items    []model.Order `json:"list"`
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"pageSize"`
	HasMore  bool          `json:"hasMore"`
}

// ListOrders возвращает страницу заказов пользователя с фильтром по
// статусу.
func (s *Service) ListOrders(ctx context.Context, openid string, status model.OrderStatus, page, pageSize int) (*OrderList, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}
	items, total, err := s.repo.ListOrders(ctx, openid, status, page, pageSize)
	if err != nil {
		return nil, err
	}
	return &OrderList{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		HasMore:  int64(page*pageSize) < total,
	}, nil
}

// compensateOrder откатывает эффекты создания заказа: возврат списания,
// освобождение купона и отмену самого заказа.
func (s *Service) compensateOrder(ctx context.Context, order *model.Order, debited, redeemed bool) {
	if debited {
		s.refundOrder(ctx, order)
	}
	if redeemed && order.UserCouponID != nil {
		if err := s.repo.ReleaseUserCoupon(ctx, *order.UserCouponID); err != nil {
			s.logger.Error("coupon release failed during compensation",
				zap.String("reconciliation", "coupon"),
				zap.Int64("orderId", order.ID),
				zap.Int64("userCouponId", *order.UserCouponID),
				zap.Error(err))
		}
	}
	s.abandonOrder(ctx, order, order.Status)
}

// refundOrder возвращает пользователю сумму списания по заказу.
func (s *Service) refundOrder(ctx context.Context, order *model.Order) {
	_, err := s.repo.Credit(ctx, order.OpenID, order.FinalAmount, "order_refund", "订单退款："+order.OrderNo, &order.ID)
	if err != nil {
		s.logger.Error("refund failed during compensation",
			zap.String("reconciliation", "balance"),
			zap.Int64("orderId", order.ID),
			zap.Float64("amount", order.FinalAmount),
			zap.Error(err))
	}
}

// abandonOrder переводит частично созданный заказ в cancelled из
// указанного статуса.
func (s *Service) abandonOrder(ctx context.Context, order *model.Order, from model.OrderStatus) {
	if err := s.repo.TransitionOrder(ctx, order.ID, from, model.OrderStatusCancelled); err != nil {
		s.logger.Error("order cancellation failed during compensation",
			zap.String("reconciliation", "order"),
			zap.Int64("orderId", order.ID),
			zap.Error(err))
	}
}

// restoreStock возвращает на склад остатки по перечисленным позициям.
func (s *Service) restoreStock(ctx context.Context, order *model.Order, items []model.OrderItem) {
	for _, item := range items {
		if _, err := s.repo.AdjustStock(ctx, item.ProductID, item.Quantity); err != nil {
			s.logger.Error("stock restore failed",
				zap.String("reconciliation", "stock"),
				zap.Int64("orderId", order.ID),
				zap.Int64("productId", item.ProductID),
				zap.Int64("quantity", item.Quantity),
				zap.Error(err))
		}
	}
}
