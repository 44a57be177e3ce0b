package handler

import (
	"encoding/json"
	"net/http"

	"github.com/lizhen986988664/distributionMini/internal/middleware"
	"github.com/lizhen986988664/distributionMini/internal/service"
)

// Coupon обрабатывает действия ресурса купонов текущего пользователя.
func (h *Handler) Coupon(w http.ResponseWriter, r *http.Request) {
	openid, ok := middleware.GetOpenIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	action, body, err := readAction(r)
	if err != nil {
		h.writeBadRequest(w, "malformed request body")
		return
	}

	switch action {
	case "createCoupon":
		var params service.CreateCouponParams
		if err := json.Unmarshal(body, &params); err != nil {
			h.writeBadRequest(w, "malformed request body")
			return
		}
		coupon, err := h.service.CreateCoupon(r.Context(), params)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeData(w, coupon)
	case "receive":
		var params struct {
			CouponID int64 `json:"couponId"`
		}
		if err := json.Unmarshal(body, &params); err != nil {
			h.writeBadRequest(w, "malformed request body")
			return
		}
		uc, err := h.service.ReceiveCoupon(r.Context(), openid, params.CouponID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeData(w, uc)
	case "useCoupon":
		var params struct {
			UserCouponID int64 `json:"userCouponId"`
			OrderID      int64 `json:"orderId"`
		}
		if err := json.Unmarshal(body, &params); err != nil {
			h.writeBadRequest(w, "malformed request body")
			return
		}
		uc, err := h.service.UseCoupon(r.Context(), openid, params.UserCouponID, params.OrderID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeData(w, uc)
	case "getUserCoupons":
		coupons, err := h.service.GetMyCoupons(r.Context(), openid)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeData(w, map[string]any{"list": coupons})
	case "getAvailableCoupons":
		var params struct {
			OrderAmount *float64 `json:"orderAmount,omitempty"`
		}
		if err := json.Unmarshal(body, &params); err != nil {
			h.writeBadRequest(w, "malformed request body")
			return
		}
		coupons, err := h.service.GetAvailableCoupons(r.Context(), openid, params.OrderAmount)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeData(w, map[string]any{"list": coupons})
	default:
		h.writeBadRequest(w, "unknown action: "+action)
	}
}
