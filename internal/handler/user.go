package handler

import (
	"encoding/json"
	"net/http"

	"github.com/lizhen986988664/distributionMini/internal/service"
)

// User обрабатывает действия ресурса пользователя. Действие login
// доступно без токена; остальные требуют авторизации.
func (h *Handler) User(w http.ResponseWriter, r *http.Request) {
	action, body, err := readAction(r)
	if err != nil {
		h.writeBadRequest(w, "malformed request body")
		return
	}

	switch action {
	case "login":
		h.login(w, r, body)
	case "getUserInfo":
		openid, ok := h.authMiddleware.OpenIDFromRequest(r)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		user, err := h.service.GetUserInfo(r.Context(), openid)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeData(w, user)
	case "updateUserInfo":
		openid, ok := h.authMiddleware.OpenIDFromRequest(r)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		var params service.UpdateUserInfoParams
		if err := json.Unmarshal(body, &params); err != nil {
			h.writeBadRequest(w, "malformed request body")
			return
		}
		user, err := h.service.UpdateUserInfo(r.Context(), openid, params)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeData(w, user)
	default:
		h.writeBadRequest(w, "unknown action: "+action)
	}
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request, body []byte) {
	var params struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(body, &params); err != nil {
		h.writeBadRequest(w, "malformed request body")
		return
	}

	res, err := h.service.Login(r.Context(), params.Code)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.authMiddleware.SetAuthCookie(w, res.User.OpenID)
	h.writeData(w, map[string]any{
		"token":     h.authMiddleware.IssueToken(res.User.OpenID),
		"userInfo":  res.User,
		"isNewUser": res.IsNew,
	})
}
