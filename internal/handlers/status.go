package handlers

import (
	"net/http"

	"github.com/ConcealNetwork/conceal-faucet-api/internal/util"
)

type statusResponse struct {
	Available bool   `json:"available"`
	Amount    uint64 `json:"amount"`
}

// Status reports whether the faucet can currently pay out: the store must be
// reachable and the wallet balance above the configured floor.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("status check: store unreachable", "error", err)
		util.JSONResponse(w, http.StatusServiceUnavailable, statusResponse{Available: false})
		return
	}

	balance, err := h.wallet.Balance(ctx)
	if err != nil {
		h.logger.Warn("status check: wallet unreachable", "error", err)
		util.JSONResponse(w, http.StatusServiceUnavailable, statusResponse{Available: false})
		return
	}

	if balance < h.cfg.Payout.MinBalance {
		util.JSONResponse(w, http.StatusServiceUnavailable, statusResponse{Available: false})
		return
	}

	util.JSONResponse(w, http.StatusOK, statusResponse{
		Available: true,
		Amount:    h.cfg.Payout.Amount,
	})
}
