package admission

import "context"

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes an admission operation and its outcome.
type OperationLog struct {
	Operation    string
	Kind         Kind
	EntityID     int64
	StudentEmail string
	SessionID    string
	Created      bool
	Status       string
	Error        error
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithPaymentGateway wires the processor used by checkout and verification.
func WithPaymentGateway(gateway PaymentGateway) ServiceOption {
	return func(service *Service) {
		service.gateway = gateway
	}
}

// WithEventPublisher wires a publisher notified after each committed admission.
func WithEventPublisher(publisher EventPublisher) ServiceOption {
	return func(service *Service) {
		service.publisher = publisher
	}
}

// WithCheckoutConfig sets the currency and the default redirect base URL for checkout sessions.
func WithCheckoutConfig(config CheckoutConfig) ServiceOption {
	return func(service *Service) {
		if config.Currency != "" {
			service.checkout.Currency = config.Currency
		}
		if config.DefaultRedirectBaseURL != "" {
			service.checkout.DefaultRedirectBaseURL = config.DefaultRedirectBaseURL
		}
	}
}
