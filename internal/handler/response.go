package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/lizhen986988664/distributionMini/internal/repository"
	"github.com/lizhen986988664/distributionMini/internal/service"
)

// Коды ошибок ответа. Ноль — успех; ненулевые коды сгруппированы по
// подсистемам, строка kind дублирует код в машиночитаемом виде.
const (
	codeInternal        = 1000
	codeInvalidArgument = 1001
	codeForbidden       = 1003
	codeNotFound        = 1004

	codeInsufficientFunds = 2001
	codeOutOfStock        = 2002
	codeInvalidState      = 2003

	codeCouponUnavailable = 3001
	codeCouponExpired     = 3002
	codeCouponMinAmount   = 3003
	codeCouponOutOfStock  = 3004
	codeCouponLimit       = 3005

	codeCardExpired     = 4001
	codeCardExhausted   = 4002
	codeSelfReferral    = 4003
	codeAlreadyReceived = 4004
	codeCardLimit       = 4005
)

// envelope — единый формат ответа API.
type envelope struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type errorMapping struct {
	sentinel error
	code     int
	kind     string
}

// Порядок важен: более специфичные ошибки идут раньше общих.
var errorMappings = []errorMapping{
	{service.ErrValidation, codeInvalidArgument, "InvalidArgument"},
	{repository.ErrForbidden, codeForbidden, "Forbidden"},

	{repository.ErrUserNotFound, codeNotFound, "NotFound"},
	{repository.ErrProductNotFound, codeNotFound, "NotFound"},
	{repository.ErrOrderNotFound, codeNotFound, "NotFound"},
	{repository.ErrCouponNotFound, codeNotFound, "NotFound"},
	{repository.ErrCardNotFound, codeNotFound, "NotFound"},

	{repository.ErrInsufficientBalance, codeInsufficientFunds, "InsufficientFunds"},
	{repository.ErrOutOfStock, codeOutOfStock, "OutOfStock"},
	{repository.ErrInvalidOrderState, codeInvalidState, "InvalidState"},

	{repository.ErrCouponUnavailable, codeCouponUnavailable, "CouponUnavailable"},
	{repository.ErrCouponExpired, codeCouponExpired, "CouponExpired"},
	{repository.ErrCouponMinAmount, codeCouponMinAmount, "CouponMinAmount"},
	{repository.ErrCouponOutOfStock, codeCouponOutOfStock, "CouponOutOfStock"},
	{repository.ErrCouponLimitReached, codeCouponLimit, "CouponLimitReached"},

	{repository.ErrCardExpired, codeCardExpired, "CardExpired"},
	{repository.ErrCardExhausted, codeCardExhausted, "CardExhausted"},
	{repository.ErrSelfReferral, codeSelfReferral, "SelfReferral"},
	{repository.ErrCardAlreadyReceived, codeAlreadyReceived, "AlreadyReceived"},
	{repository.ErrCardLimitReached, codeCardLimit, "CardLimitReached"},
}

func (h *Handler) writeJSON(w http.ResponseWriter, resp envelope) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("write response error", zap.Error(err))
	}
}

func (h *Handler) writeData(w http.ResponseWriter, data any) {
	h.writeJSON(w, envelope{Code: 0, Message: "success", Data: data})
}

// writeError преобразует ошибку бизнес-логики в ответ с кодом и kind.
// Неклассифицированные ошибки логируются и отдаются общим сообщением.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.sentinel) {
			h.writeJSON(w, envelope{Code: m.code, Kind: m.kind, Message: err.Error()})
			return
		}
	}

	h.logger.Error("request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err))
	h.writeJSON(w, envelope{Code: codeInternal, Kind: "Internal", Message: "internal error"})
}

func (h *Handler) writeBadRequest(w http.ResponseWriter, message string) {
	h.writeJSON(w, envelope{Code: codeInvalidArgument, Kind: "InvalidArgument", Message: message})
}
