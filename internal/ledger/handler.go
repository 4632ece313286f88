package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/workmate-pos/workmate-sub003/internal/platform/httpx"
)

// Handler wires the JSON endpoints for the mutation engine.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the ledger handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/mutations/move", h.handleMove)
	r.Post("/mutations/set", h.handleSet)
	r.Post("/mutations/adjust", h.handleAdjust)
	r.Get("/mutations", h.handleListMutations)
	r.Get("/mutations/{id}", h.handleGetMutation)
}

type initiatorDTO struct {
	Type string `json:"type" validate:"required"`
	Name string `json:"name" validate:"required,max=255"`
}

type moveChangeDTO struct {
	LocationID      string `json:"locationId" validate:"required"`
	InventoryItemID string `json:"inventoryItemId" validate:"required"`
	Quantity        int    `json:"quantity" validate:"required,gt=0"`
	From            string `json:"from" validate:"required"`
	To              string `json:"to" validate:"required"`
}

type moveRequestDTO struct {
	Shop      string          `json:"shop" validate:"required"`
	Initiator initiatorDTO    `json:"initiator" validate:"required"`
	Reason    string          `json:"reason" validate:"required"`
	Changes   []moveChangeDTO `json:"changes" validate:"dive"`
}

type setChangeDTO struct {
	LocationID      string `json:"locationId" validate:"required"`
	InventoryItemID string `json:"inventoryItemId" validate:"required"`
	Quantity        int    `json:"quantity" validate:"gte=0"`
	CompareQuantity *int   `json:"compareQuantity,omitempty"`
}

type setRequestDTO struct {
	Shop      string         `json:"shop" validate:"required"`
	Initiator initiatorDTO   `json:"initiator" validate:"required"`
	Reason    string         `json:"reason" validate:"required"`
	Name      string         `json:"name" validate:"required"`
	Changes   []setChangeDTO `json:"changes" validate:"dive"`
}

type adjustChangeDTO struct {
	LocationID      string `json:"locationId" validate:"required"`
	InventoryItemID string `json:"inventoryItemId" validate:"required"`
	Delta           int    `json:"delta"`
}

type adjustRequestDTO struct {
	Shop      string            `json:"shop" validate:"required"`
	Initiator initiatorDTO      `json:"initiator" validate:"required"`
	Reason    string            `json:"reason" validate:"required"`
	Name      string            `json:"name" validate:"required"`
	Changes   []adjustChangeDTO `json:"changes" validate:"dive"`
}

type mutationDTO struct {
	ID            int64  `json:"id"`
	Shop          string `json:"shop"`
	Type          string `json:"type"`
	InitiatorType string `json:"initiatorType"`
	InitiatorName string `json:"initiatorName"`
	CreatedAt     string `json:"createdAt"`
}

type mutationItemDTO struct {
	InventoryItemID string `json:"inventoryItemId"`
	LocationID      string `json:"locationId"`
	QuantityName    string `json:"quantityName"`
	Quantity        *int   `json:"quantity,omitempty"`
	Delta           *int   `json:"delta,omitempty"`
	CompareQuantity *int   `json:"compareQuantity,omitempty"`
}

func (h *Handler) handleMove(w http.ResponseWriter, r *http.Request) {
	var dto moveRequestDTO
	if err := httpx.DecodeJSON(r, &dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	changes := make([]MoveChange, 0, len(dto.Changes))
	for _, change := range dto.Changes {
		changes = append(changes, MoveChange{
			LocationID:      change.LocationID,
			InventoryItemID: change.InventoryItemID,
			Quantity:        change.Quantity,
			From:            Bucket(change.From),
			To:              Bucket(change.To),
		})
	}
	err := h.service.Move(r.Context(), MoveRequest{
		Shop:      dto.Shop,
		Initiator: Initiator{Type: InitiatorType(dto.Initiator.Type), Name: dto.Initiator.Name},
		Reason:    dto.Reason,
		Changes:   changes,
	})
	h.respondMutationOutcome(w, "move", err)
}

func (h *Handler) handleSet(w http.ResponseWriter, r *http.Request) {
	var dto setRequestDTO
	if err := httpx.DecodeJSON(r, &dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	changes := make([]SetChange, 0, len(dto.Changes))
	for _, change := range dto.Changes {
		changes = append(changes, SetChange{
			LocationID:      change.LocationID,
			InventoryItemID: change.InventoryItemID,
			Quantity:        change.Quantity,
			CompareQuantity: change.CompareQuantity,
		})
	}
	err := h.service.Set(r.Context(), SetRequest{
		Shop:      dto.Shop,
		Initiator: Initiator{Type: InitiatorType(dto.Initiator.Type), Name: dto.Initiator.Name},
		Reason:    dto.Reason,
		Name:      Bucket(dto.Name),
		Changes:   changes,
	})
	h.respondMutationOutcome(w, "set", err)
}

func (h *Handler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	var dto adjustRequestDTO
	if err := httpx.DecodeJSON(r, &dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	changes := make([]AdjustChange, 0, len(dto.Changes))
	for _, change := range dto.Changes {
		changes = append(changes, AdjustChange{
			LocationID:      change.LocationID,
			InventoryItemID: change.InventoryItemID,
			Delta:           change.Delta,
		})
	}
	err := h.service.Adjust(r.Context(), AdjustRequest{
		Shop:      dto.Shop,
		Initiator: Initiator{Type: InitiatorType(dto.Initiator.Type), Name: dto.Initiator.Name},
		Reason:    dto.Reason,
		Name:      Bucket(dto.Name),
		Changes:   changes,
	})
	h.respondMutationOutcome(w, "adjust", err)
}

func (h *Handler) handleListMutations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	shop := q.Get("shop")
	initiator := Initiator{
		Type: InitiatorType(q.Get("initiator_type")),
		Name: q.Get("initiator_name"),
	}
	if shop == "" || initiator.Name == "" || !initiator.Type.IsValid() {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "shop, initiator_type and initiator_name are required")
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	mutations, err := h.service.MutationsByInitiator(r.Context(), shop, initiator, limit)
	if err != nil {
		h.logger.Error("list mutations", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	dtos := make([]mutationDTO, 0, len(mutations))
	for _, m := range mutations {
		dtos = append(dtos, toMutationDTO(m))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"mutations": dtos})
}

func (h *Handler) handleGetMutation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be an integer")
		return
	}
	mutation, items, err := h.service.MutationByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrMutationNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "mutation not found")
			return
		}
		h.logger.Error("get mutation", slog.Int64("id", id), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	itemDTOs := make([]mutationItemDTO, 0, len(items))
	for _, item := range items {
		itemDTOs = append(itemDTOs, mutationItemDTO{
			InventoryItemID: item.InventoryItemID,
			LocationID:      item.LocationID,
			QuantityName:    string(item.QuantityName),
			Quantity:        item.Quantity,
			Delta:           item.Delta,
			CompareQuantity: item.CompareQuantity,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"mutation":             toMutationDTO(mutation),
		"items":                itemDTOs,
		"referenceDocumentUri": ReferenceDocumentURI(Initiator{Type: mutation.InitiatorType, Name: mutation.InitiatorName}, mutation.ID),
	})
}

// respondMutationOutcome maps engine errors to problem responses: domain
// validation to 400, stale compare to 409, other business rejections to 422,
// an unreachable quantity store to 502.
func (h *Handler) respondMutationOutcome(w http.ResponseWriter, op string, err error) {
	if err == nil {
		httpx.JSON(w, http.StatusOK, map[string]any{"status": "applied"})
		return
	}
	var userErrs UserErrors
	switch {
	case errors.Is(err, ErrUnknownBucket),
		errors.Is(err, ErrSameBucket),
		errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrUnknownInitiator):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrCompareQuantityStale):
		httpx.Problem(w, http.StatusConflict, "Compare Quantity Stale", err.Error())
	case errors.As(err, &userErrs):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Mutation Rejected", userErrs.Error())
	case errors.Is(err, ErrStoreUnavailable):
		httpx.Problem(w, http.StatusBadGateway, "Quantity Store Unavailable", "the change was logged but not applied")
	default:
		h.logger.Error("mutation failed", slog.String("op", op), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func toMutationDTO(m Mutation) mutationDTO {
	return mutationDTO{
		ID:            m.ID,
		Shop:          m.Shop,
		Type:          string(m.Type),
		InitiatorType: string(m.InitiatorType),
		InitiatorName: m.InitiatorName,
		CreatedAt:     m.CreatedAt.Format(time.RFC3339),
	}
}
