package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lizhen986988664/distributionMini/internal/model"
	"github.com/lizhen986988664/distributionMini/internal/repository"
)

// stubRepo — управляемая реализация Repository для тестов сервиса.
// Хранит состояние в памяти и записывает вызовы с побочными эффектами.
type stubRepo struct {
	user    *model.User
	userErr error

	products map[int64]*model.Product

	coupon    *model.UserCoupon
	couponErr error

	debits  []float64
	credits []float64
	points  []int64

	redeemErr    error
	redeemCalls  []int64
	releaseCalls []int64

	stockFailAt int64 // id товара, списание по которому падает

	orders      map[int64]*model.Order
	nextOrderID int64

	card           *model.StarCard
	cardReceive    *model.StarCardReceive
	cardRedeemErr  error
	createCardErrs []error
	createdCards   []model.StarCard
	stats          *model.StarCardStats
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		products: make(map[int64]*model.Product),
		orders:   make(map[int64]*model.Order),
	}
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) GetOrCreateUser(ctx context.Context, openid string) (*model.User, bool, error) {
	if s.user != nil {
		return s.user, false, nil
	}
	s.user = &model.User{OpenID: openid, Nickname: "用户" + openid}
	return s.user, true, nil
}

func (s *stubRepo) GetUser(ctx context.Context, openid string) (*model.User, error) {
	if s.userErr != nil {
		return nil, s.userErr
	}
	if s.user == nil {
		return nil, repository.ErrUserNotFound
	}
	return s.user, nil
}

func (s *stubRepo) UpdateUserProfile(ctx context.Context, openid, nickname, avatar, phone, address string) (*model.User, error) {
	return s.user, nil
}

func (s *stubRepo) Credit(ctx context.Context, openid string, amount float64, reason, description string, orderID *int64) (*model.BalanceLog, error) {
	s.credits = append(s.credits, amount)
	s.user.Balance += amount
	return &model.BalanceLog{Amount: amount, Reason: reason}, nil
}

func (s *stubRepo) Debit(ctx context.Context, openid string, amount float64, reason, description string, orderID *int64) (*model.BalanceLog, error) {
	if s.user.Balance < amount {
		return nil, repository.ErrInsufficientBalance
	}
	s.debits = append(s.debits, amount)
	s.user.Balance -= amount
	return &model.BalanceLog{Amount: -amount, Reason: reason}, nil
}

func (s *stubRepo) CreditPoints(ctx context.Context, openid string, points int64, reason, description string) (*model.PointsLog, error) {
	s.points = append(s.points, points)
	return &model.PointsLog{Points: points, Reason: reason}, nil
}

func (s *stubRepo) CreateProduct(ctx context.Context, p *model.Product) (*model.Product, error) {
	return p, nil
}

func (s *stubRepo) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return p, nil
}

func (s *stubRepo) ListProducts(ctx context.Context, category string, page, pageSize int) ([]model.Product, int64, error) {
	return nil, 0, nil
}

func (s *stubRepo) AdjustStock(ctx context.Context, productID, delta int64) (int64, error) {
	if delta < 0 && productID == s.stockFailAt {
		return 0, repository.ErrOutOfStock
	}
	p, ok := s.products[productID]
	if !ok {
		return 0, repository.ErrProductNotFound
	}
	if p.Stock+delta < 0 {
		return 0, repository.ErrOutOfStock
	}
	p.Stock += delta
	p.Sales -= delta
	return p.Stock, nil
}

func (s *stubRepo) CreateCoupon(ctx context.Context, c *model.Coupon) (*model.Coupon, error) {
	return c, nil
}

func (s *stubRepo) ReceiveCoupon(ctx context.Context, openid string, couponID int64) (*model.UserCoupon, error) {
	return s.coupon, s.couponErr
}

func (s *stubRepo) GetUserCoupon(ctx context.Context, id int64, openid string) (*model.UserCoupon, error) {
	if s.couponErr != nil {
		return nil, s.couponErr
	}
	if s.coupon == nil || s.coupon.ID != id {
		return nil, repository.ErrCouponNotFound
	}
	return s.coupon, nil
}

func (s *stubRepo) GetUserCoupons(ctx context.Context, openid string) ([]model.UserCoupon, error) {
	return nil, nil
}

func (s *stubRepo) GetAvailableUserCoupons(ctx context.Context, openid string, orderAmount *float64) ([]model.UserCoupon, error) {
	return nil, nil
}

func (s *stubRepo) RedeemUserCoupon(ctx context.Context, id int64, openid string, orderID int64) error {
	if s.redeemErr != nil {
		return s.redeemErr
	}
	s.redeemCalls = append(s.redeemCalls, id)
	s.coupon.Status = model.UserCouponStatusUsed
	return nil
}

func (s *stubRepo) ReleaseUserCoupon(ctx context.Context, id int64) error {
	s.releaseCalls = append(s.releaseCalls, id)
	if s.coupon != nil && s.coupon.ID == id {
		s.coupon.Status = model.UserCouponStatusReceived
	}
	return nil
}

func (s *stubRepo) CreateStarCard(ctx context.Context, card *model.StarCard, maxActive int) (*model.StarCard, error) {
	s.createdCards = append(s.createdCards, *card)
	if len(s.createCardErrs) > 0 {
		err := s.createCardErrs[0]
		s.createCardErrs = s.createCardErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return card, nil
}

func (s *stubRepo) ListCardsByCreator(ctx context.Context, openid string) ([]model.StarCard, error) {
	return nil, nil
}

func (s *stubRepo) GetCardForShare(ctx context.Context, cardID int64, openid string) (*model.StarCard, error) {
	if s.card == nil || s.card.ID != cardID {
		return nil, repository.ErrCardNotFound
	}
	return s.card, nil
}

func (s *stubRepo) RedeemStarCard(ctx context.Context, shareCode, receiverOpenID string) (*model.StarCard, *model.StarCardReceive, error) {
	if s.cardRedeemErr != nil {
		return nil, nil, s.cardRedeemErr
	}
	return s.card, s.cardReceive, nil
}

func (s *stubRepo) GetStarCardStats(ctx context.Context, openid string) (*model.StarCardStats, error) {
	return s.stats, nil
}

func (s *stubRepo) CreateOrder(ctx context.Context, o *model.Order) (*model.Order, error) {
	s.nextOrderID++
	stored := *o
	stored.ID = s.nextOrderID
	s.orders[stored.ID] = &stored
	result := stored
	return &result, nil
}

func (s *stubRepo) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	result := *o
	return &result, nil
}

func (s *stubRepo) GetOrderByRequestID(ctx context.Context, openid, requestID string) (*model.Order, error) {
	for _, o := range s.orders {
		if o.OpenID == openid && o.RequestID == requestID {
			result := *o
			return &result, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (s *stubRepo) ListOrders(ctx context.Context, openid string, status model.OrderStatus, page, pageSize int) ([]model.Order, int64, error) {
	return nil, 0, nil
}

func (s *stubRepo) TransitionOrder(ctx context.Context, id int64, from, to model.OrderStatus) error {
	o, ok := s.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	if o.Status != from {
		return repository.ErrInvalidOrderState
	}
	o.Status = to
	return nil
}

func newTestRepo() *stubRepo {
	repo := newStubRepo()
	repo.user = &model.User{OpenID: "user-1", Balance: 200}
	repo.products[1] = &model.Product{ID: 1, Name: "海星杯", Price: 50, Stock: 10, Status: model.ProductStatusActive}
	repo.products[2] = &model.Product{ID: 2, Name: "海星贴纸", Price: 20, Stock: 5, Status: model.ProductStatusActive}
	return repo
}

func validReceiver() model.ReceiverInfo {
	return model.ReceiverInfo{Name: "张三", Phone: "13800000000", Address: "某某路1号"}
}

func TestCreateOrder_AppliesFixedCoupon(t *testing.T) {
	repo := newTestRepo()
	repo.coupon = &model.UserCoupon{
		ID:         7,
		OpenID:     "user-1",
		Type:       model.CouponTypeFixed,
		Amount:     10,
		MinAmount:  50,
		Status:     model.UserCouponStatusReceived,
		ExpireTime: time.Now().Add(24 * time.Hour),
	}
	svc := NewService(repo, nil, nil, false)

	couponID := int64(7)
	order, err := svc.CreateOrder(context.Background(), "user-1", CreateOrderParams{
		Items:         []OrderItemParams{{ProductID: 1, Quantity: 2}},
		Receiver:      validReceiver(),
		PaymentMethod: "balance",
		UserCouponID:  &couponID,
	})
	if err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}

	if order.TotalAmount != 100 {
		t.Errorf("TotalAmount = %v, want 100", order.TotalAmount)
	}
	if order.DiscountAmount != 10 {
		t.Errorf("DiscountAmount = %v, want 10", order.DiscountAmount)
	}
	if order.FinalAmount != 90 {
		t.Errorf("FinalAmount = %v, want 90", order.FinalAmount)
	}
	if order.Status != model.OrderStatusPaid {
		t.Errorf("Status = %v, want paid", order.Status)
	}
	if len(repo.debits) != 1 || repo.debits[0] != 90 {
		t.Errorf("debits = %v, want [90]", repo.debits)
	}
	if repo.coupon.Status != model.UserCouponStatusUsed {
		t.Errorf("coupon status = %v, want used", repo.coupon.Status)
	}
	if repo.products[1].Stock != 8 {
		t.Errorf("stock = %v, want 8", repo.products[1].Stock)
	}
}

func TestCreateOrder_InsufficientBalance(t *testing.T) {
	repo := newTestRepo()
	repo.user.Balance = 50
	svc := NewService(repo, nil, nil, false)

	_, err := svc.CreateOrder(context.Background(), "user-1", CreateOrderParams{
		Items:         []OrderItemParams{{ProductID: 1, Quantity: 2}},
		Receiver:      validReceiver(),
		PaymentMethod: "balance",
	})
	if !errors.Is(err, repository.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if len(repo.orders) != 0 {
		t.Errorf("order must not be created, got %d orders", len(repo.orders))
	}
	if len(repo.debits) != 0 {
		t.Errorf("balance must not be debited, got %v", repo.debits)
	}
}

func TestCreateOrder_StockFailureCompensates(t *testing.T) {
	repo := newTestRepo()
	repo.stockFailAt = 2
	repo.coupon = &model.UserCoupon{
		ID:         7,
		OpenID:     "user-1",
		Type:       model.CouponTypeFixed,
		Amount:     10,
		Status:     model.UserCouponStatusReceived,
		ExpireTime: time.Now().Add(24 * time.Hour),
	}
	svc := NewService(repo, nil, nil, false)

	couponID := int64(7)
	_, err := svc.CreateOrder(context.Background(), "user-1", CreateOrderParams{
		Items: []OrderItemParams{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 1},
		},
		Receiver:      validReceiver(),
		PaymentMethod: "balance",
		UserCouponID:  &couponID,
	})
	if !errors.Is(err, repository.ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock, got %v", err)
	}

	if repo.products[1].Stock != 10 {
		t.Errorf("stock of product 1 = %v, want restored 10", repo.products[1].Stock)
	}
	if len(repo.credits) != 1 || repo.credits[0] != 110 {
		t.Errorf("credits = %v, want refund [110]", repo.credits)
	}
	if repo.user.Balance != 200 {
		t.Errorf("balance = %v, want restored 200", repo.user.Balance)
	}
	if len(repo.releaseCalls) != 1 {
		t.Errorf("coupon must be released, release calls = %v", repo.releaseCalls)
	}
	order := repo.orders[1]
	if order.Status != model.OrderStatusCancelled {
		t.Errorf("order status = %v, want cancelled", order.Status)
	}
}

func TestCreateOrder_BestEffortDropsInvalidCoupon(t *testing.T) {
	repo := newTestRepo()
	repo.coupon = &model.UserCoupon{
		ID:         7,
		OpenID:     "user-1",
		Type:       model.CouponTypeFixed,
		Amount:     10,
		Status:     model.UserCouponStatusReceived,
		ExpireTime: time.Now().Add(-time.Hour), // просрочен
	}
	svc := NewService(repo, nil, nil, false)

	couponID := int64(7)
	order, err := svc.CreateOrder(context.Background(), "user-1", CreateOrderParams{
		Items:         []OrderItemParams{{ProductID: 1, Quantity: 1}},
		Receiver:      validReceiver(),
		PaymentMethod: "balance",
		UserCouponID:  &couponID,
	})
	if err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}
	if order.DiscountAmount != 0 {
		t.Errorf("DiscountAmount = %v, want 0", order.DiscountAmount)
	}
	if order.FinalAmount != 50 {
		t.Errorf("FinalAmount = %v, want 50", order.FinalAmount)
	}
	if len(repo.redeemCalls) != 0 {
		t.Errorf("coupon must not be redeemed, calls = %v", repo.redeemCalls)
	}
}

func TestCreateOrder_StrictModeRejectsInvalidCoupon(t *testing.T) {
	repo := newTestRepo()
	repo.coupon = &model.UserCoupon{
		ID:         7,
		OpenID:     "user-1",
		Type:       model.CouponTypeFixed,
		Amount:     10,
		Status:     model.UserCouponStatusReceived,
		ExpireTime: time.Now().Add(-time.Hour),
	}
	svc := NewService(repo, nil, nil, true)

	couponID := int64(7)
	_, err := svc.CreateOrder(context.Background(), "user-1", CreateOrderParams{
		Items:         []OrderItemParams{{ProductID: 1, Quantity: 1}},
		Receiver:      validReceiver(),
		PaymentMethod: "balance",
		UserCouponID:  &couponID,
	})
	if !errors.Is(err, repository.ErrCouponExpired) {
		t.Fatalf("expected ErrCouponExpired, got %v", err)
	}
	if len(repo.orders) != 0 {
		t.Errorf("order must not be created, got %d orders", len(repo.orders))
	}
}

func TestCreateOrder_RepeatedRequestIDReturnsExisting(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo, nil, nil, false)

	params := CreateOrderParams{
		Items:         []OrderItemParams{{ProductID: 1, Quantity: 1}},
		Receiver:      validReceiver(),
		PaymentMethod: "balance",
		RequestID:     "req-123",
	}

	first, err := svc.CreateOrder(context.Background(), "user-1", params)
	if err != nil {
		t.Fatalf("first CreateOrder error: %v", err)
	}
	second, err := svc.CreateOrder(context.Background(), "user-1", params)
	if err != nil {
		t.Fatalf("second CreateOrder error: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("repeat returned order %d, want %d", second.ID, first.ID)
	}
	if len(repo.debits) != 1 {
		t.Errorf("debits = %v, want a single debit", repo.debits)
	}
	if repo.products[1].Stock != 9 {
		t.Errorf("stock = %v, want a single decrement to 9", repo.products[1].Stock)
	}
}

func TestCreateOrder_Validation(t *testing.T) {
	svc := NewService(newTestRepo(), nil, nil, false)

	tests := []struct {
		name   string
		params CreateOrderParams
	}{
		{"empty items", CreateOrderParams{Receiver: validReceiver(), PaymentMethod: "balance"}},
		{"missing receiver", CreateOrderParams{
			Items:         []OrderItemParams{{ProductID: 1, Quantity: 1}},
			PaymentMethod: "balance",
		}},
		{"unknown payment method", CreateOrderParams{
			Items:         []OrderItemParams{{ProductID: 1, Quantity: 1}},
			Receiver:      validReceiver(),
			PaymentMethod: "cash",
		}},
		{"zero quantity", CreateOrderParams{
			Items:         []OrderItemParams{{ProductID: 1, Quantity: 0}},
			Receiver:      validReceiver(),
			PaymentMethod: "balance",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateOrder(context.Background(), "user-1", tt.params)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestCancelOrder_RestoresStockAndCoupon(t *testing.T) {
	repo := newTestRepo()
	couponID := int64(7)
	repo.coupon = &model.UserCoupon{ID: 7, OpenID: "user-1", Status: model.UserCouponStatusUsed}
	repo.orders[1] = &model.Order{
		ID:           1,
		OpenID:       "user-1",
		Status:       model.OrderStatusPending,
		UserCouponID: &couponID,
		Items: []model.OrderItem{
			{ProductID: 1, Quantity: 3},
			{ProductID: 2, Quantity: 1},
		},
	}
	repo.nextOrderID = 1
	svc := NewService(repo, nil, nil, false)

	order, err := svc.CancelOrder(context.Background(), "user-1", 1)
	if err != nil {
		t.Fatalf("CancelOrder error: %v", err)
	}

	if order.Status != model.OrderStatusCancelled {
		t.Errorf("status = %v, want cancelled", order.Status)
	}
	if repo.products[1].Stock != 13 {
		t.Errorf("stock of product 1 = %v, want 13", repo.products[1].Stock)
	}
	if repo.products[2].Stock != 6 {
		t.Errorf("stock of product 2 = %v, want 6", repo.products[2].Stock)
	}
	if repo.coupon.Status != model.UserCouponStatusReceived {
		t.Errorf("coupon status = %v, want received", repo.coupon.Status)
	}
}

func TestCancelOrder_Forbidden(t *testing.T) {
	repo := newTestRepo()
	repo.orders[1] = &model.Order{ID: 1, OpenID: "other-user", Status: model.OrderStatusPending}
	svc := NewService(repo, nil, nil, false)

	_, err := svc.CancelOrder(context.Background(), "user-1", 1)
	if !errors.Is(err, repository.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestCancelOrder_OnlyFromPending(t *testing.T) {
	repo := newTestRepo()
	repo.orders[1] = &model.Order{ID: 1, OpenID: "user-1", Status: model.OrderStatusPaid}
	svc := NewService(repo, nil, nil, false)

	_, err := svc.CancelOrder(context.Background(), "user-1", 1)
	if !errors.Is(err, repository.ErrInvalidOrderState) {
		t.Fatalf("expected ErrInvalidOrderState, got %v", err)
	}
	if repo.orders[1].Status != model.OrderStatusPaid {
		t.Errorf("order status changed to %v", repo.orders[1].Status)
	}
}

func TestConfirmOrder_CreditsFloorPoints(t *testing.T) {
	repo := newTestRepo()
	repo.orders[1] = &model.Order{
		ID:          1,
		OpenID:      "user-1",
		OrderNo:     "ORD1",
		Status:      model.OrderStatusShipped,
		FinalAmount: 90.50,
	}
	svc := NewService(repo, nil, nil, false)

	order, err := svc.ConfirmOrder(context.Background(), "user-1", 1)
	if err != nil {
		t.Fatalf("ConfirmOrder error: %v", err)
	}
	if order.Status != model.OrderStatusCompleted {
		t.Errorf("status = %v, want completed", order.Status)
	}
	if len(repo.points) != 1 || repo.points[0] != 90 {
		t.Errorf("points = %v, want [90]", repo.points)
	}
}

func TestShipOrder_OnlyFromPaid(t *testing.T) {
	repo := newTestRepo()
	repo.orders[1] = &model.Order{ID: 1, OpenID: "user-1", Status: model.OrderStatusPending}
	svc := NewService(repo, nil, nil, false)

	_, err := svc.ShipOrder(context.Background(), 1)
	if !errors.Is(err, repository.ErrInvalidOrderState) {
		t.Fatalf("expected ErrInvalidOrderState, got %v", err)
	}
}

func TestLogin_DevModeUsesCodeAsOpenid(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, nil, nil, false)

	res, err := svc.Login(context.Background(), "dev-openid")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if !res.IsNew {
		t.Errorf("IsNew = false, want true for first login")
	}
	if res.User.OpenID != "dev-openid" {
		t.Errorf("OpenID = %q, want dev-openid", res.User.OpenID)
	}
}
