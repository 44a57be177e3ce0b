package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/lizhen986988664/distributionMini/internal/middleware"
	"github.com/lizhen986988664/distributionMini/internal/model"
	"github.com/lizhen986988664/distributionMini/internal/service"
)

type orderIDParams struct {
	ID int64 `json:"id"`
}

// Order обрабатывает действия ресурса заказов текущего пользователя.
func (h *Handler) Order(w http.ResponseWriter, r *http.Request) {
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
	case "create":
		var params service.CreateOrderParams
		if err := json.Unmarshal(body, &params); err != nil {
			h.writeBadRequest(w, "malformed request body")
			return
		}
		order, err := h.service.CreateOrder(r.Context(), openid, params)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeData(w, order)
	case "cancel":
		h.orderTransition(w, r, body, openid, h.service.CancelOrder)
	case "confirm":
		h.orderTransition(w, r, body, openid, h.service.ConfirmOrder)
	case "ship":
		var params orderIDParams
		if err := json.Unmarshal(body, &params); err != nil {
			h.writeBadRequest(w, "malformed request body")
			return
		}
		order, err := h.service.ShipOrder(r.Context(), params.ID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeData(w, order)
	case "getDetail":
		h.orderTransition(w, r, body, openid, h.service.GetOrder)
	case "getList":
		var params struct {
			Status   string `json:"status"`
			Page     int    `json:"page"`
			PageSize int    `json:"pageSize"`
		}
		if err := json.Unmarshal(body, &params); err != nil {
			h.writeBadRequest(w, "malformed request body")
			return
		}
		list, err := h.service.ListOrders(r.Context(), openid, model.OrderStatus(params.Status), params.Page, params.PageSize)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeData(w, list)
	default:
		h.writeBadRequest(w, "unknown action: "+action)
	}
}

// orderTransition обслуживает действия над одним заказом по его id.
func (h *Handler) orderTransition(w http.ResponseWriter, r *http.Request, body []byte, openid string,
	op func(ctx context.Context, openid string, orderID int64) (*model.Order, error)) {
	var params orderIDParams
	if err := json.Unmarshal(body, &params); err != nil {
		h.writeBadRequest(w, "malformed request body")
		return
	}
	order, err := op(r.Context(), openid, params.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, order)
}
