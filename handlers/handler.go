package handlers

import (
	"errors"
	"fmt"

	"github.com/anjiri1684/creator_market/database"
	"github.com/anjiri1684/creator_market/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler serves the marketplace settlement API.
type Handler struct {
	store      database.Store
	checkout   *services.CheckoutService
	reconciler *services.Reconciler
	payouts    *services.PayoutManager
	promoters  *services.PromoterService
	validate   *validator.Validate
	logger     *zap.Logger
}

func New(store database.Store, checkout *services.CheckoutService, reconciler *services.Reconciler, payouts *services.PayoutManager, promoters *services.PromoterService, logger *zap.Logger) *Handler {
	return &Handler{
		store:      store,
		checkout:   checkout,
		reconciler: reconciler,
		payouts:    payouts,
		promoters:  promoters,
		validate:   validator.New(),
		logger:     logger,
	}
}

type errorKind struct {
	err    error
	status int
	code   string
}

var errorKinds = []errorKind{
	{services.ErrInvalidAmount, fiber.StatusBadRequest, "invalid_amount"},
	{services.ErrInvalidPercentage, fiber.StatusBadRequest, "invalid_percentage"},
	{services.ErrInvalidOutcome, fiber.StatusBadRequest, "invalid_outcome"},
	{services.ErrInvalidStatus, fiber.StatusBadRequest, "invalid_status"},
	{services.ErrSelfPurchase, fiber.StatusBadRequest, "self_purchase"},
	{services.ErrNotFound, fiber.StatusNotFound, "not_found"},
	{services.ErrSellerNotPayable, fiber.StatusConflict, "seller_not_payable"},
	{services.ErrInvalidState, fiber.StatusConflict, "invalid_state"},
	{services.ErrProductUnavailable, fiber.StatusConflict, "product_unavailable"},
	{services.ErrAlreadyPromoter, fiber.StatusConflict, "already_promoter"},
	{services.ErrInsufficientBalance, fiber.StatusUnprocessableEntity, "insufficient_balance"},
	{services.ErrBelowMinimumThreshold, fiber.StatusUnprocessableEntity, "below_minimum_threshold"},
	{services.ErrDisbursementUnconfirmed, fiber.StatusBadGateway, "disbursement_unconfirmed"},
}

func fail(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"status":  "error",
		"code":    code,
		"message": message,
	})
}

// respondError renders a service error. Unknown errors go to the fiber
// ErrorHandler as 500s.
func (h *Handler) respondError(c *fiber.Ctx, err error) error {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return fail(c, k.status, k.code, err.Error())
		}
	}
	h.logger.Error("request failed", zap.String("path", c.Path()), zap.String("method", c.Method()), zap.Error(err))
	return fiber.NewError(fiber.StatusInternalServerError, "internal error")
}

// parse decodes and validates the JSON body into req. Callers answer a
// non-nil error with invalidRequest.
func (h *Handler) parse(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return fmt.Errorf("cannot parse JSON: %w", err)
	}
	return h.validate.Struct(req)
}

func invalidRequest(c *fiber.Ctx, err error) error {
	return fail(c, fiber.StatusBadRequest, "invalid_request", err.Error())
}
