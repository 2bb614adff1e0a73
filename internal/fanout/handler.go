package fanout

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"txfanout/internal/logger"
	"txfanout/pkg/errors"
	"txfanout/pkg/models"
)

// Processor handles one invocation event.
type Processor interface {
	Process(ctx context.Context, event models.InvocationEvent) (*Result, error)
}

type Handler struct {
	service Processor
	logger  logger.Logger
}

func NewHandler(service Processor, log logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/v1")
	{
		v1.POST("/invoke", h.Invoke)
	}
}

// Invoke godoc
// @Summary      Invoke the fan-out pipeline
// @Description  Process an invocation event carrying a base64-encoded transaction record
// @Tags         fanout
// @Accept       json
// @Produce      json
// @Param        event  body      models.InvocationEvent  true  "Invocation event"
// @Success      200    {object}  models.InvocationAck
// @Failure      400    {object}  errors.ErrorResponse
// @Failure      502    {object}  errors.ErrorResponse
// @Failure      503    {object}  errors.ErrorResponse
// @Router       /invoke [post]
func (h *Handler) Invoke(c *gin.Context) {
	var event models.InvocationEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrParse.WithCause(err)))
		return
	}

	res, err := h.service.Process(c.Request.Context(), event)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, res.Ack())
}

func (h *Handler) handleError(c *gin.Context, err error) {
	h.logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)

	status := errors.ToHTTPStatus(err)
	response := errors.ToErrorResponse(err)

	c.JSON(status, response)
}
