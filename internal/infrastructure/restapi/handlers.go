package restapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"token_farm/internal/app/port"
	"token_farm/internal/domain/entity"
	"token_farm/internal/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ContractResponse describes one resolved contract.
type ContractResponse struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// BalanceResponse is one balance slot in raw base units and formatted.
type BalanceResponse struct {
	Raw       string `json:"raw"`
	Formatted string `json:"formatted"`
	Resolved  bool   `json:"resolved"`
}

// StateResponse is the payload of GET /api/v1/state.
type StateResponse struct {
	Account      string                                   `json:"account"`
	NetworkID    entity.NetworkID                         `json:"networkId"`
	Network      entity.NetworkDefinition                 `json:"network"`
	Contracts    map[entity.ContractRole]ContractResponse `json:"contracts"`
	Balances     map[entity.BalanceSlot]BalanceResponse   `json:"balances"`
	Loading      bool                                     `json:"loading"`
	Phase        entity.OrchestratorPhase                 `json:"phase"`
	Notices      []entity.Notice                          `json:"notices"`
	StartupError string                                   `json:"startupError,omitempty"`
}

// StepResponse is a transaction step as exposed over HTTP.
type StepResponse struct {
	entity.TransactionStep
	Amount string `json:"amount,omitempty"`
}

// TransactionsResponse wraps a list of steps.
type TransactionsResponse struct {
	Steps []StepResponse `json:"steps"`
	Error string         `json:"error,omitempty"`
}

// StakeRequest is the body of POST /api/v1/stake.
type StakeRequest struct {
	Amount string `json:"amount" binding:"required"`
	Units  string `json:"units"`
}

// SyncResponse is the payload of POST /api/v1/sync.
type SyncResponse struct {
	Balances map[entity.BalanceSlot]BalanceResponse `json:"balances"`
	Error    string                                 `json:"error,omitempty"`
}

// ErrorResponse is returned for rejected requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// TokenFarmHandler serves the token farm API.
type TokenFarmHandler struct {
	svc      port.TokenFarmService
	decimals uint8
	logger   *zap.Logger
}

// NewTokenFarmHandler creates a new TokenFarmHandler.
func NewTokenFarmHandler(svc port.TokenFarmService, decimals uint8, logger *zap.Logger) *TokenFarmHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenFarmHandler{svc: svc, decimals: decimals, logger: logger.Named("TokenFarmHandler")}
}

// maxStateWait bounds the long-poll of GET /api/v1/state.
const maxStateWait = 10 * time.Second

// GetStateHandler returns the application state. With ?wait=<ms> it blocks
// until the state changes or the wait elapses, then returns the latest state.
func (h *TokenFarmHandler) GetStateHandler(c *gin.Context) {
	st := h.svc.State()

	if raw := c.Query("wait"); raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || ms < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "wait must be a non-negative number of milliseconds"})
			return
		}
		wait := time.Duration(ms) * time.Millisecond
		if wait > maxStateWait {
			wait = maxStateWait
		}
		if wait > 0 {
			st = h.waitForChange(c.Request.Context(), wait, st)
		}
	}

	c.JSON(http.StatusOK, h.stateResponse(st))
}

func (h *TokenFarmHandler) waitForChange(ctx context.Context, wait time.Duration, current entity.ApplicationState) entity.ApplicationState {
	updates, cancel := h.svc.Subscribe()
	defer cancel()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case st, ok := <-updates:
		if ok {
			return st
		}
	case <-timer.C:
	case <-ctx.Done():
	}
	return current
}

func (h *TokenFarmHandler) stateResponse(st entity.ApplicationState) StateResponse {
	resp := StateResponse{
		Account:      st.Account.String(),
		NetworkID:    st.NetworkID,
		Network:      st.Network,
		Contracts:    make(map[entity.ContractRole]ContractResponse, len(st.Contracts)),
		Balances:     h.balances(st.Balances),
		Loading:      st.Loading,
		Phase:        st.Phase,
		Notices:      st.Notices,
		StartupError: st.StartupError,
	}
	for role, handle := range st.Contracts {
		resp.Contracts[role] = ContractResponse{Name: handle.Name, Address: handle.Address.Hex()}
	}
	if resp.Notices == nil {
		resp.Notices = []entity.Notice{}
	}
	return resp
}

// StakeHandler runs approve then stake.
func (h *TokenFarmHandler) StakeHandler(c *gin.Context) {
	var req StakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "amount is required"})
		return
	}

	steps, err := h.svc.StakeTokens(c.Request.Context(), req.Amount, req.Units)
	h.respondSteps(c, steps, err)
}

// UnstakeHandler withdraws the staked balance.
func (h *TokenFarmHandler) UnstakeHandler(c *gin.Context) {
	steps, err := h.svc.UnstakeTokens(c.Request.Context())
	h.respondSteps(c, steps, err)
}

// SyncHandler re-reads every balance. Partial failures still return the
// balances that were read, with the error attached.
func (h *TokenFarmHandler) SyncHandler(c *gin.Context) {
	snapshot, err := h.svc.Sync(c.Request.Context())
	if err != nil && snapshot.Values == nil {
		c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}
	resp := SyncResponse{Balances: h.balances(snapshot)}
	if err != nil {
		resp.Error = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

// TransactionsHandler lists steps that have not reached a terminal state.
func (h *TokenFarmHandler) TransactionsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, TransactionsResponse{Steps: toStepResponses(h.svc.InFlight())})
}

// HealthHandler reports whether startup succeeded.
func (h *TokenFarmHandler) HealthHandler(c *gin.Context) {
	st := h.svc.State()
	if st.StartupError != "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": st.StartupError})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "loading": st.Loading})
}

func (h *TokenFarmHandler) respondSteps(c *gin.Context, steps []entity.TransactionStep, err error) {
	resp := TransactionsResponse{Steps: toStepResponses(steps)}
	if err != nil {
		h.logger.Warn("Transaction request failed", zap.String("path", c.FullPath()), zap.Error(err))
		resp.Error = err.Error()
		c.JSON(statusFor(err), resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *TokenFarmHandler) balances(snapshot entity.BalanceSnapshot) map[entity.BalanceSlot]BalanceResponse {
	out := make(map[entity.BalanceSlot]BalanceResponse, len(entity.AllRoles))
	for _, role := range entity.AllRoles {
		slot := entity.SlotForRole(role)
		raw := snapshot.Get(slot)
		formatted, err := utils.FormatBaseUnits(raw, h.decimals)
		if err != nil {
			formatted = raw
		}
		out[slot] = BalanceResponse{Raw: raw, Formatted: formatted, Resolved: snapshot.Resolved[slot]}
	}
	return out
}

func toStepResponses(steps []entity.TransactionStep) []StepResponse {
	out := make([]StepResponse, 0, len(steps))
	for _, s := range steps {
		out = append(out, StepResponse{TransactionStep: s, Amount: s.AmountString()})
	}
	return out
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrOrchestratorBusy):
		return http.StatusConflict
	case errors.Is(err, entity.ErrContractUnavailable),
		errors.Is(err, entity.ErrTransactionRejected),
		errors.Is(err, entity.ErrTransactionReverted):
		return http.StatusUnprocessableEntity
	case errors.Is(err, entity.ErrProviderTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, entity.ErrTransactionSubmissionFailed),
		errors.Is(err, entity.ErrProviderQueryFailed):
		return http.StatusBadGateway
	}
	return http.StatusServiceUnavailable
}
