// Package stripegateway adapts stripe-go to the admission PaymentGateway port.
package stripegateway

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/MarkoPoloResearchLab/academy/pkg/admission"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"
)

const paymentMethodCard = "card"

// ErrMissingSecretKey is returned when the gateway is built without an API key.
var ErrMissingSecretKey = errors.New("stripe secret key is required")

// Option customizes a Gateway.
type Option func(*gatewayConfig)

type gatewayConfig struct {
	logger     *zap.Logger
	backendURL string
	httpClient *http.Client
}

// WithLogger routes stripe-go's own request logging through zap.
func WithLogger(logger *zap.Logger) Option {
	return func(config *gatewayConfig) {
		config.logger = logger
	}
}

// WithBackendURL points the client at another API host, such as stripe-mock.
func WithBackendURL(url string, httpClient *http.Client) Option {
	return func(config *gatewayConfig) {
		config.backendURL = url
		config.httpClient = httpClient
	}
}

// Gateway implements admission.PaymentGateway on the Stripe API.
type Gateway struct {
	api *client.API
}

// New builds a Gateway. Network retries are disabled.
func New(secretKey string, options ...Option) (*Gateway, error) {
	trimmedKey := strings.TrimSpace(secretKey)
	if trimmedKey == "" {
		return nil, ErrMissingSecretKey
	}
	config := gatewayConfig{logger: zap.NewNop()}
	for _, option := range options {
		if option != nil {
			option(&config)
		}
	}
	backendConfig := &stripe.BackendConfig{
		LeveledLogger:     config.logger.Sugar(),
		MaxNetworkRetries: stripe.Int64(0),
	}
	if config.backendURL != "" {
		backendConfig.URL = stripe.String(config.backendURL)
	}
	if config.httpClient != nil {
		backendConfig.HTTPClient = config.httpClient
	}
	api := &client.API{}
	api.Init(trimmedKey, stripe.NewBackendsWithConfig(backendConfig))
	return &Gateway{api: api}, nil
}

// CreateCustomer registers a processor customer and returns its id.
func (gateway *Gateway) CreateCustomer(ctx context.Context, email string, name string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	customer, err := gateway.api.Customers.New(params)
	if err != nil {
		return "", err
	}
	return customer.ID, nil
}

// CreateCheckoutSession opens a one-off card payment session for a single line item.
func (gateway *Gateway) CreateCheckoutSession(ctx context.Context, request admission.CheckoutSessionRequest) (admission.CheckoutSession, error) {
	params := buildCheckoutSessionParams(request)
	params.Context = ctx
	session, err := gateway.api.CheckoutSessions.New(params)
	if err != nil {
		return admission.CheckoutSession{}, err
	}
	return mapCheckoutSession(session), nil
}

// RetrieveCheckoutSession fetches the current state of a session.
func (gateway *Gateway) RetrieveCheckoutSession(ctx context.Context, sessionID string) (admission.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	session, err := gateway.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return admission.CheckoutSession{}, err
	}
	return mapCheckoutSession(session), nil
}

func buildCheckoutSessionParams(request admission.CheckoutSessionRequest) *stripe.CheckoutSessionParams {
	productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
		Name: stripe.String(request.LineItem.Name),
	}
	if request.LineItem.Description != "" {
		productData.Description = stripe.String(request.LineItem.Description)
	}
	if len(request.LineItem.Images) > 0 {
		productData.Images = stripe.StringSlice(request.LineItem.Images)
	}
	quantity := request.LineItem.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{paymentMethodCard}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:    stripe.String(request.LineItem.Currency),
					ProductData: productData,
					UnitAmount:  stripe.Int64(request.LineItem.UnitAmountCents.Int64()),
				},
				Quantity: stripe.Int64(quantity),
			},
		},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(request.SuccessURL),
		CancelURL:  stripe.String(request.CancelURL),
	}
	if request.CustomerID != "" {
		params.Customer = stripe.String(request.CustomerID)
	}
	for key, value := range request.Metadata {
		params.AddMetadata(key, value)
	}
	return params
}

func mapCheckoutSession(session *stripe.CheckoutSession) admission.CheckoutSession {
	if session == nil {
		return admission.CheckoutSession{}
	}
	metadata := make(map[string]string, len(session.Metadata))
	for key, value := range session.Metadata {
		metadata[key] = value
	}
	return admission.CheckoutSession{
		ID:            session.ID,
		URL:           session.URL,
		PaymentStatus: admission.PaymentStatus(session.PaymentStatus),
		Metadata:      metadata,
	}
}
