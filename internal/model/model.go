// Package model содержит доменные сущности сервиса мини-магазина.
package model

import "time"

// UserStatus описывает состояние учётной записи пользователя.
type UserStatus string

const (
	UserStatusActive  UserStatus = "active"
	UserStatusBlocked UserStatus = "blocked"
)

// User представляет пользователя магазина с балансом и баллами.
// Баланс и баллы изменяются только через операции леджера.
type User struct {
	ID         int64      `json:"-"`
	OpenID     string     `json:"openid"`
	Nickname   string     `json:"nickname"`
	Avatar     string     `json:"avatar"`
	Phone      string     `json:"phone"`
	Address    string     `json:"address"`
	Level      string     `json:"level"`
	Status     UserStatus `json:"status"`
	Balance    float64    `json:"balance"`
	Points     int64      `json:"points"`
	TotalSpent float64    `json:"totalSpent"`
	OrderCount int64      `json:"orderCount"`
	CreatedAt  time.Time  `json:"createTime"`
	UpdatedAt  time.Time  `json:"updateTime"`
}

// ProductStatus описывает состояние товара в каталоге.
type ProductStatus string

const (
	ProductStatusActive  ProductStatus = "active"
	ProductStatusDeleted ProductStatus = "deleted"
)

// Product описывает товар с остатком на складе и счётчиком продаж.
type Product struct {
	ID        int64         `json:"id"`
	Name      string        `json:"name"`
	Category  string        `json:"category"`
	Price     float64       `json:"price"`
	Stock     int64         `json:"stock"`
	Sales     int64         `json:"sales"`
	Status    ProductStatus `json:"status"`
	CreatedAt time.Time     `json:"createTime"`
	UpdatedAt time.Time     `json:"updateTime"`
}

// OrderStatus описывает статус заказа.
// Допустимые переходы: pending -> paid -> shipped -> completed,
// либо pending -> cancelled. Прочие переходы запрещены.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// PaymentMethod описывает способ оплаты заказа.
type PaymentMethod string

const (
	PaymentMethodBalance PaymentMethod = "balance"
	PaymentMethodWechat  PaymentMethod = "wechat"
)

// OrderItem описывает позицию заказа со снимком цены на момент покупки.
type OrderItem struct {
	ProductID int64   `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int64   `json:"quantity"`
}

// ReceiverInfo содержит данные получателя заказа.
type ReceiverInfo struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// Order описывает заказ пользователя.
type Order struct {
	ID             int64         `json:"id"`
	OrderNo        string        `json:"orderNo"`
	OpenID         string        `json:"openid"`
	Items          []OrderItem   `json:"items"`
	Receiver       ReceiverInfo  `json:"receiverInfo"`
	PaymentMethod  PaymentMethod `json:"paymentMethod"`
	UserCouponID   *int64        `json:"couponId,omitempty"`
	TotalAmount    float64       `json:"totalAmount"`
	DiscountAmount float64       `json:"discountAmount"`
	FinalAmount    float64       `json:"finalAmount"`
	TotalQuantity  int64         `json:"totalQuantity"`
	Status         OrderStatus   `json:"status"`
	Remark         string        `json:"remark,omitempty"`
	RequestID      string        `json:"-"`
	PaymentTime    *time.Time    `json:"paymentTime,omitempty"`
	CancelTime     *time.Time    `json:"cancelTime,omitempty"`
	CompleteTime   *time.Time    `json:"completeTime,omitempty"`
	CreatedAt      time.Time     `json:"createTime"`
	UpdatedAt      time.Time     `json:"updateTime"`
}

// CouponType описывает вид скидки шаблона купона.
type CouponType string

const (
	// CouponTypeFixed — купон на фиксированную сумму.
	CouponTypeFixed CouponType = "fixed"
	// CouponTypeDiscount — процентная скидка с верхней границей.
	CouponTypeDiscount CouponType = "discount"
)

// CouponStatus описывает доступность шаблона купона для выдачи.
type CouponStatus string

const (
	CouponStatusAvailable CouponStatus = "available"
	CouponStatusDisabled  CouponStatus = "disabled"
)

// Coupon описывает шаблон купона: правило скидки, запас и лимиты выдачи.
type Coupon struct {
	ID               int64        `json:"id"`
	Name             string       `json:"name"`
	Description      string       `json:"description"`
	Type             CouponType   `json:"type"`
	Amount           float64      `json:"amount"`
	MinAmount        float64      `json:"minAmount"`
	Discount         float64      `json:"discount"`
	MaxDiscount      float64      `json:"maxDiscount"`
	ValidDays        int32        `json:"validDays"`
	Stock            int64        `json:"stock"`
	LimitPerUser     int32        `json:"limitPerUser"`
	ReceiveStartTime *time.Time   `json:"receiveStartTime,omitempty"`
	ReceiveEndTime   *time.Time   `json:"receiveEndTime,omitempty"`
	Status           CouponStatus `json:"status"`
	CreatedAt        time.Time    `json:"createTime"`
	UpdatedAt        time.Time    `json:"updateTime"`
}

// UserCouponStatus описывает состояние экземпляра купона у пользователя.
type UserCouponStatus string

const (
	UserCouponStatusReceived UserCouponStatus = "received"
	UserCouponStatusUsed     UserCouponStatus = "used"
	UserCouponStatusExpired  UserCouponStatus = "expired"
)

// UserCoupon — экземпляр купона, выданный конкретному пользователю.
// Поля правила скидки зафиксированы на момент выдачи.
type UserCoupon struct {
	ID          int64            `json:"id"`
	OpenID      string           `json:"openid"`
	CouponID    int64            `json:"couponId"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Type        CouponType       `json:"type"`
	Amount      float64          `json:"amount"`
	MinAmount   float64          `json:"minAmount"`
	Discount    float64          `json:"discount"`
	MaxDiscount float64          `json:"maxDiscount"`
	Status      UserCouponStatus `json:"status"`
	OrderID     *int64           `json:"orderId,omitempty"`
	ExpireTime  time.Time        `json:"expireTime"`
	ReceiveTime time.Time        `json:"receiveTime"`
	UsedAt      *time.Time       `json:"useTime,omitempty"`
}

// StarCardStatus описывает состояние реферальной карты.
type StarCardStatus string

const (
	StarCardStatusActive  StarCardStatus = "active"
	StarCardStatusExpired StarCardStatus = "expired"
	StarCardStatusUsed    StarCardStatus = "used"
)

// StarCard — реферальная карта: по коду карта начисляет вознаграждение
// и получателю, и создателю, пока не исчерпан лимит получений.
type StarCard struct {
	ID              int64          `json:"id"`
	CreatorOpenID   string         `json:"creatorOpenid"`
	Title           string         `json:"title"`
	Type            string         `json:"type"`
	RewardAmount    float64        `json:"rewardAmount"`
	ShareCode       string         `json:"shareCode"`
	Status          StarCardStatus `json:"status"`
	ReceiveCount    int32          `json:"receiveCount"`
	MaxReceiveCount int32          `json:"maxReceiveCount"`
	ExpireTime      time.Time      `json:"expireTime"`
	CreatedAt       time.Time      `json:"createTime"`
	UpdatedAt       time.Time      `json:"updateTime"`
}

// StarCardReceiveStatus описывает состояние записи о получении карты.
type StarCardReceiveStatus string

const (
	StarCardReceivePending   StarCardReceiveStatus = "pending"
	StarCardReceiveCompleted StarCardReceiveStatus = "completed"
)

// StarCardReceive — факт получения карты. На пару (карта, получатель)
// допускается не более одной записи.
type StarCardReceive struct {
	ID             int64                 `json:"id"`
	CardID         int64                 `json:"cardId"`
	ShareCode      string                `json:"cardShareCode"`
	CreatorOpenID  string                `json:"creatorOpenid"`
	ReceiverOpenID string                `json:"receiverOpenid"`
	RewardAmount   float64               `json:"rewardAmount"`
	Status         StarCardReceiveStatus `json:"status"`
	ReceiveTime    time.Time             `json:"receiveTime"`
	ProcessTime    *time.Time            `json:"processTime,omitempty"`
}

// StarCardStats — сводная статистика по картам пользователя.
type StarCardStats struct {
	TotalShared   int64   `json:"totalShared"`
	TotalReceived int64   `json:"totalReceived"`
	TotalReward   float64 `json:"totalReward"`
}

// BalanceLog — запись журнала изменений баланса. Журнал только пополняется.
type BalanceLog struct {
	ID            int64     `json:"id"`
	OpenID        string    `json:"openid"`
	Amount        float64   `json:"amount"`
	Reason        string    `json:"type"`
	Description   string    `json:"description"`
	BalanceBefore float64   `json:"balanceBefore"`
	BalanceAfter  float64   `json:"balanceAfter"`
	OrderID       *int64    `json:"orderId,omitempty"`
	CreatedAt     time.Time `json:"createTime"`
}

// PointsLog — запись журнала изменений баллов. Журнал только пополняется.
type PointsLog struct {
	ID           int64     `json:"id"`
	OpenID       string    `json:"openid"`
	Points       int64     `json:"points"`
	Reason       string    `json:"type"`
	Description  string    `json:"description"`
	PointsBefore int64     `json:"pointsBefore"`
	PointsAfter  int64     `json:"pointsAfter"`
	CreatedAt    time.Time `json:"createTime"`
}
