package handlers

import (
	"errors"
	"net/http"

	"github.com/ConcealNetwork/conceal-faucet-api/internal/claim"
	"github.com/ConcealNetwork/conceal-faucet-api/internal/faucet"
	"github.com/ConcealNetwork/conceal-faucet-api/internal/util"
)

type startSessionRequest struct {
	Address string `json:"address" validate:"required,ccx_address"`
}

type startSessionResponse struct {
	CSRFToken       string `json:"csrfToken"`
	MinDwellSeconds int64  `json:"minDwellSeconds"`
}

// StartSession opens a play-to-claim session. The session token is delivered
// as an HttpOnly cookie, the CSRF token in the response body; a cross-site
// attacker can trigger the cookie but cannot read the body.
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := util.ParseJSON(r, &req); err != nil {
		util.JSONResponse(w, http.StatusBadRequest, map[string]any{"message": msgInvalidRequest})
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		util.JSONResponse(w, http.StatusBadRequest, map[string]any{"message": msgInvalidAddress})
		return
	}

	result, err := h.orchestrator.StartSession(r.Context(), claim.StartRequest{
		Address: req.Address,
		IP:      h.resolver.FromRequest(r),
		Origin:  r.Header.Get("Origin"),
		Path:    r.URL.Path,
	})
	if err != nil {
		if errors.Is(err, faucet.ErrInvalidAddress) {
			util.JSONResponse(w, http.StatusBadRequest, map[string]any{"message": msgInvalidAddress})
			return
		}
		h.respondError(w, err)
		return
	}

	h.setSessionCookie(w, r, result.Token)

	util.JSONResponse(w, http.StatusOK, startSessionResponse{
		CSRFToken:       result.CSRFToken,
		MinDwellSeconds: int64(h.cfg.Session.MinDwell.Seconds()),
	})
}

// setSessionCookie installs the session token cookie. SameSite=None is
// required for a frontend served from a different site, and None in turn
// requires Secure.
func (h *Handler) setSessionCookie(w http.ResponseWriter, r *http.Request, token string) {
	samesite := http.SameSiteLaxMode
	if h.cfg.Session.CookieSecure {
		samesite = http.SameSiteNoneMode
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.Session.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cfg.Session.CookieSecure,
		SameSite: samesite,
		MaxAge:   int(h.cfg.Session.TTL.Seconds()),
	})
}

// clearSessionCookie removes the session token cookie after consumption.
func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.Session.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cfg.Session.CookieSecure,
		MaxAge:   -1,
	})
}
