package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clientcheck/trust-system/internal/core/domain"
	"github.com/clientcheck/trust-system/internal/core/ports"
)

// ClientHandler handles HTTP requests for client profiles and their trust
// aggregate.
type ClientHandler struct {
	clients ports.ClientRepository
	trust   ports.TrustService
}

func NewClientHandler(clients ports.ClientRepository, trust ports.TrustService) *ClientHandler {
	return &ClientHandler{clients: clients, trust: trust}
}

type createClientRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required,min=5,max=20"`
	DisplayName string `json:"display_name,omitempty" validate:"max=200"`
}

type clientResponse struct {
	ID            int64     `json:"id"`
	PhoneNumber   string    `json:"phone_number"`
	DisplayName   string    `json:"display_name,omitempty"`
	TotalReviews  int       `json:"total_reviews"`
	AverageRating *float64  `json:"average_rating"`
	AiSafetyScore *float64  `json:"ai_safety_score"`
	CreatedAt     time.Time `json:"created_at"`
}

// Create handles POST /v1/clients.
//
// @Summary      Register a client profile
// @Tags         clients
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createClientRequest  true  "Client details"
// @Success      201   {object}  clientResponse
// @Failure      409   {object}  map[string]string
// @Router       /v1/clients [post]
func (h *ClientHandler) Create(c echo.Context) error {
	var req createClientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	now := time.Now().UTC()
	created, err := h.clients.Create(c.Request().Context(), &domain.ClientProfile{
		PhoneNumber: req.PhoneNumber,
		DisplayName: req.DisplayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, toClientResponse(created))
}

// Get handles GET /v1/clients/:client_id.
//
// @Summary      Get a client profile with its trust aggregate
// @Tags         clients
// @Produce      json
// @Security     BearerAuth
// @Param        client_id  path      int  true  "Client id"
// @Success      200        {object}  clientResponse
// @Failure      404        {object}  map[string]string
// @Failure      429        {object}  map[string]string
// @Router       /v1/clients/{client_id} [get]
func (h *ClientHandler) Get(c echo.Context) error {
	clientID, err := pathID(c, "client_id")
	if err != nil {
		return err
	}

	client, err := h.clients.FindByID(c.Request().Context(), clientID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toClientResponse(client))
}

// RecomputeAll handles POST /v1/admin/recompute, the out-of-band repair
// sweep for detected aggregate drift.
//
// @Summary      Recompute all client trust aggregates
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]int
// @Router       /v1/admin/recompute [post]
func (h *ClientHandler) RecomputeAll(c echo.Context) error {
	n, err := h.trust.RecomputeAll(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int{"recomputed": n})
}

func toClientResponse(cp *domain.ClientProfile) clientResponse {
	return clientResponse{
		ID:            cp.ID,
		PhoneNumber:   cp.PhoneNumber,
		DisplayName:   cp.DisplayName,
		TotalReviews:  cp.Aggregate.TotalReviews,
		AverageRating: cp.Aggregate.AverageRating,
		AiSafetyScore: cp.Aggregate.AiSafetyScore,
		CreatedAt:     cp.CreatedAt,
	}
}
