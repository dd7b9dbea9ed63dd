package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"resty.dev/v3"
)

// StripeClient speaks the Stripe-compatible REST API for Connect destination
// charges and connected-account payouts. Build one per process and share it.
type StripeClient struct {
	*WebhookVerifier

	http   *resty.Client
	logger *zap.Logger
}

type stripeError struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type stripeSessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type stripePayoutResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func NewStripeClient(baseURL, secretKey string, verifier *WebhookVerifier, timeout time.Duration, logger *zap.Logger) *StripeClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(secretKey).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &StripeClient{
		WebhookVerifier: verifier,
		http:            client,
		logger:          logger,
	}
}

func (c *StripeClient) Close() error {
	return c.http.Close()
}

func (c *StripeClient) CreateCheckoutSession(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error) {
	if req.DestinationAccount == "" {
		return nil, errors.New("checkout request has no destination account")
	}

	form := map[string]string{
		"mode":                                   "payment",
		"success_url":                            req.SuccessURL,
		"cancel_url":                             req.CancelURL,
		"client_reference_id":                    req.ClientReferenceID,
		"line_items[0][quantity]":                strconv.FormatInt(max(req.LineItem.Quantity, 1), 10),
		"line_items[0][price_data][currency]":    req.Currency,
		"line_items[0][price_data][unit_amount]": strconv.FormatInt(req.LineItem.UnitAmount, 10),
		"line_items[0][price_data][product_data][name]":   req.LineItem.Name,
		"payment_intent_data[application_fee_amount]":     strconv.FormatInt(req.ApplicationFeeAmount, 10),
		"payment_intent_data[transfer_data][destination]": req.DestinationAccount,
	}
	if req.LineItem.Description != "" {
		form["line_items[0][price_data][product_data][description]"] = req.LineItem.Description
	}
	if req.LineItem.ImageURL != "" {
		form["line_items[0][price_data][product_data][images][0]"] = req.LineItem.ImageURL
	}
	if req.CustomerEmail != "" {
		form["customer_email"] = req.CustomerEmail
	}
	for k, v := range req.Metadata {
		form["metadata["+k+"]"] = v
		form["payment_intent_data[metadata]["+k+"]"] = v
	}

	var out stripeSessionResponse
	var apiErr stripeError
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", "checkout-"+req.ClientReferenceID).
		SetFormData(form).
		SetResult(&out).
		SetError(&apiErr).
		Post("/v1/checkout/sessions")
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	if res.IsError() {
		c.logger.Error("processor rejected checkout session",
			zap.Int("status", res.StatusCode()),
			zap.String("error_type", apiErr.Error.Type),
			zap.String("message", apiErr.Error.Message))
		return nil, fmt.Errorf("processor returned %d: %s", res.StatusCode(), apiErr.Error.Message)
	}
	if out.ID == "" {
		return nil, errors.New("processor returned a session without id")
	}

	c.logger.Info("checkout session created",
		zap.String("session_id", out.ID),
		zap.String("client_reference_id", req.ClientReferenceID))
	return &CheckoutSession{ID: out.ID, URL: out.URL}, nil
}

// Disburse pays out from the connected account's platform balance to its
// external bank account.
func (c *StripeClient) Disburse(ctx context.Context, in *DisbursementInstruction) (*Disbursement, error) {
	form := map[string]string{
		"amount":      strconv.FormatInt(in.Amount, 10),
		"currency":    in.Currency,
		"description": in.Reference,
	}
	for k, v := range in.Metadata {
		form["metadata["+k+"]"] = v
	}

	var out stripePayoutResponse
	var apiErr stripeError
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Stripe-Account", in.DestinationAccount).
		SetHeader("Idempotency-Key", "payout-"+in.Reference).
		SetFormData(form).
		SetResult(&out).
		SetError(&apiErr).
		Post("/v1/payouts")
	if err != nil {
		return nil, fmt.Errorf("failed to initiate payout: %w", err)
	}
	if res.IsError() {
		c.logger.Error("processor rejected payout",
			zap.Int("status", res.StatusCode()),
			zap.String("reference", in.Reference),
			zap.String("message", apiErr.Error.Message))
		if definitiveRejection(res.StatusCode()) {
			return nil, fmt.Errorf("%w: processor returned %d: %s", ErrDisbursementRejected, res.StatusCode(), apiErr.Error.Message)
		}
		return nil, fmt.Errorf("processor returned %d: %s", res.StatusCode(), apiErr.Error.Message)
	}

	c.logger.Info("payout initiated",
		zap.String("reference", in.Reference),
		zap.String("external_payout_id", out.ID))
	return &Disbursement{ID: out.ID, Status: out.Status}, nil
}

// definitiveRejection reports whether a 4xx answer means the payout was not
// created. Rate limiting and idempotency conflicts leave the outcome open.
func definitiveRejection(status int) bool {
	return status >= http.StatusBadRequest && status < http.StatusInternalServerError &&
		status != http.StatusTooManyRequests && status != http.StatusConflict
}
