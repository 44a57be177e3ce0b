package handler

import (
	"encoding/json"
	"net/http"

	"github.com/lizhen986988664/distributionMini/internal/service"
)

// Product обрабатывает действия каталога товаров. Чтение каталога
// доступно без токена.
func (h *Handler) Product(w http.ResponseWriter, r *http.Request) {
	action, body, err := readAction(r)
	if err != nil {
		h.writeBadRequest(w, "malformed request body")
		return
	}

	switch action {
	case "create":
		var params service.CreateProductParams
		if err := json.Unmarshal(body, &params); err != nil {
			h.writeBadRequest(w, "malformed request body")
			return
		}
		product, err := h.service.CreateProduct(r.Context(), params)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeData(w, product)
	case "getDetail":
		var params struct {
			ID int64 `json:"id"`
		}
		if err := json.Unmarshal(body, &params); err != nil {
			h.writeBadRequest(w, "malformed request body")
			return
		}
		product, err := h.service.GetProduct(r.Context(), params.ID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeData(w, product)
	case "getList":
		var params struct {
			Category string `json:"category"`
			Page     int    `json:"page"`
			PageSize int    `json:"pageSize"`
		}
		if err := json.Unmarshal(body, &params); err != nil {
			h.writeBadRequest(w, "malformed request body")
			return
		}
		list, err := h.service.ListProducts(r.Context(), params.Category, params.Page, params.PageSize)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeData(w, list)
	default:
		h.writeBadRequest(w, "unknown action: "+action)
	}
}
