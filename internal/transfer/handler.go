package transfer

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/workmate-pos/workmate-sub003/internal/ledger"
	"github.com/workmate-pos/workmate-sub003/internal/platform/httpx"
)

// Handler exposes the transfer sync endpoint to document services.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the transfer handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers transfer routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/sync", h.handleSync)
}

type lineItemDTO struct {
	UUID            string `json:"uuid" validate:"required"`
	InventoryItemID string `json:"inventoryItemId" validate:"required"`
	Status          string `json:"status" validate:"required"`
	Quantity        int    `json:"quantity" validate:"gt=0"`
}

type snapshotDTO struct {
	FromLocationID string        `json:"fromLocationId"`
	ToLocationID   string        `json:"toLocationId"`
	LineItems      []lineItemDTO `json:"lineItems" validate:"dive"`
}

type syncRequestDTO struct {
	Shop      string      `json:"shop" validate:"required"`
	Initiator struct {
		Type string `json:"type" validate:"required"`
		Name string `json:"name" validate:"required,max=255"`
	} `json:"initiator" validate:"required"`
	Reason   string      `json:"reason" validate:"required"`
	Previous snapshotDTO `json:"previous"`
	Current  snapshotDTO `json:"current"`
}

func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	var dto syncRequestDTO
	if err := httpx.DecodeJSON(r, &dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	previous, err := toSnapshot(dto.Previous)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	current, err := toSnapshot(dto.Current)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	err = h.service.Sync(r.Context(), SyncInput{
		Shop: dto.Shop,
		Initiator: ledger.Initiator{
			Type: ledger.InitiatorType(dto.Initiator.Type),
			Name: dto.Initiator.Name,
		},
		Reason:   dto.Reason,
		Previous: previous,
		Current:  current,
	})
	h.respondSyncOutcome(w, err)
}

func (h *Handler) respondSyncOutcome(w http.ResponseWriter, err error) {
	if err == nil {
		httpx.JSON(w, http.StatusOK, map[string]any{"status": "applied"})
		return
	}
	var userErrs ledger.UserErrors
	switch {
	case errors.Is(err, ledger.ErrUnknownInitiator):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.As(err, &userErrs):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Sync Rejected", userErrs.Error())
	case errors.Is(err, ledger.ErrStoreUnavailable):
		httpx.Problem(w, http.StatusBadGateway, "Quantity Store Unavailable", "the sync was logged but at least one leg was not applied")
	default:
		h.logger.Error("transfer sync failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

var errInvalidStatus = errors.New("transfer: invalid line item status")

func toSnapshot(dto snapshotDTO) (ledger.TransferSnapshot, error) {
	snap := ledger.TransferSnapshot{
		FromLocationID: dto.FromLocationID,
		ToLocationID:   dto.ToLocationID,
		LineItems:      make([]ledger.TransferLineItem, 0, len(dto.LineItems)),
	}
	for _, item := range dto.LineItems {
		if _, err := uuid.Parse(item.UUID); err != nil {
			return ledger.TransferSnapshot{}, errors.New("transfer: line item uuid must be a valid UUID")
		}
		status := ledger.TransferStatus(item.Status)
		if !status.IsValid() {
			return ledger.TransferSnapshot{}, errInvalidStatus
		}
		snap.LineItems = append(snap.LineItems, ledger.TransferLineItem{
			UUID:            item.UUID,
			InventoryItemID: item.InventoryItemID,
			Status:          status,
			Quantity:        item.Quantity,
		})
	}
	return snap, nil
}
