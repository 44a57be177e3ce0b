package handler

import (
	"encoding/json"
	"net/http"

	"github.com/lizhen986988664/distributionMini/internal/middleware"
	"github.com/lizhen986988664/distributionMini/internal/service"
)

// StarCard обрабатывает действия реферальных карт текущего пользователя.
func (h *Handler) StarCard(w http.ResponseWriter, r *http.Request) {
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
	case "createCard":
		var params service.CreateCardParams
		if err := json.Unmarshal(body, &params); err != nil {
			h.writeBadRequest(w, "malformed request body")
			return
		}
		card, err := h.service.CreateCard(r.Context(), openid, params)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeData(w, card)
	case "getMyCards":
		cards, err := h.service.GetMyCards(r.Context(), openid)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeData(w, map[string]any{"list": cards})
	case "shareCard":
		var params struct {
			CardID int64 `json:"cardId"`
		}
		if err := json.Unmarshal(body, &params); err != nil {
			h.writeBadRequest(w, "malformed request body")
			return
		}
		res, err := h.service.ShareCard(r.Context(), openid, params.CardID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeData(w, res)
	case "receiveCard":
		var params struct {
			ShareCode string `json:"shareCode"`
		}
		if err := json.Unmarshal(body, &params); err != nil {
			h.writeBadRequest(w, "malformed request body")
			return
		}
		res, err := h.service.ReceiveCard(r.Context(), openid, params.ShareCode)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeData(w, res)
	case "getStats":
		stats, err := h.service.GetStats(r.Context(), openid)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeData(w, stats)
	default:
		h.writeBadRequest(w, "unknown action: "+action)
	}
}
