package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ConcealNetwork/conceal-faucet-api/internal/claim"
	"github.com/ConcealNetwork/conceal-faucet-api/internal/faucet"
	"github.com/ConcealNetwork/conceal-faucet-api/internal/util"
)

type claimRequest struct {
	Address string `json:"address" validate:"required"`
	Score   int64  `json:"score"`
	// CSRFToken in the body is a fallback; the header takes precedence.
	CSRFToken string `json:"csrfToken"`
}

// Claim runs a claim attempt against the caller's session. On success the
// session cookie is cleared; the session itself is already consumed.
func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := util.ParseJSON(r, &req); err != nil {
		util.JSONResponse(w, http.StatusBadRequest, map[string]any{"message": msgInvalidRequest})
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		util.JSONResponse(w, http.StatusBadRequest, map[string]any{"message": msgInvalidRequest})
		return
	}

	var token string
	if cookie, err := r.Cookie(h.cfg.Session.CookieName); err == nil {
		token = cookie.Value
	}

	csrfToken := r.Header.Get(h.cfg.Session.CSRFHeader)
	if csrfToken == "" {
		csrfToken = req.CSRFToken
	}

	ip := h.resolver.FromRequest(r)

	result, err := h.orchestrator.Claim(r.Context(), claim.ClaimRequest{
		Address:   req.Address,
		Score:     req.Score,
		Token:     token,
		CSRFToken: csrfToken,
		IP:        ip,
		Origin:    r.Header.Get("Origin"),
		Path:      r.URL.Path,
	})
	if err != nil {
		// A Retry-After hint tells well-behaved clients when to come back; it
		// does not reveal whether the rate limit or a cooldown fired.
		if faucet.IsThrottled(err) {
			if wait := h.orchestrator.RetryAfter(r.Context(), ip, req.Address); wait > 0 {
				seconds := int64((wait + time.Second - 1) / time.Second)
				w.Header().Set("Retry-After", strconv.FormatInt(seconds, 10))
			}
		}
		h.respondError(w, err)
		return
	}

	h.clearSessionCookie(w)

	util.JSONResponse(w, http.StatusOK, result)
}
