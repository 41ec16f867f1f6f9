package handlers

import (
	"net/http"

	"github.com/ConcealNetwork/conceal-faucet-api/internal/faucet"
	"github.com/ConcealNetwork/conceal-faucet-api/internal/util"
)

// User-facing messages are deliberately generic: a caller cannot tell a CSRF
// failure from an IP or origin failure, and throttling is indistinguishable
// from planned unavailability. The abuse log carries the detail.
const (
	msgInvalidRequest = "Invalid request"
	msgInvalidAddress = "Invalid address"
	msgNotAvailable   = "Faucet is not available at this time"
	msgUnavailable    = "Faucet is temporarily unavailable"
)

// respondError maps a pipeline error onto a response. Unknown errors deny the
// request rather than allowing anything through.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case faucet.IsClientViolation(err):
		util.JSONResponse(w, http.StatusBadRequest, map[string]any{"message": msgInvalidRequest})
	case faucet.IsThrottled(err):
		util.JSONResponse(w, http.StatusTooManyRequests, map[string]any{"message": msgNotAvailable})
	case faucet.IsUnavailable(err):
		util.JSONResponse(w, http.StatusServiceUnavailable, map[string]any{"message": msgUnavailable})
	default:
		h.logger.Error("unexpected error while handling request", "error", err)
		util.JSONResponse(w, http.StatusServiceUnavailable, map[string]any{"message": msgUnavailable})
	}
}
