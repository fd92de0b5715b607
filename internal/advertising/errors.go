package advertising

import "errors"

var (
	ErrNotFound          = errors.New("advertising: not found")
	ErrServiceNotFound   = errors.New("advertising: service not found")
	ErrSellerNotFound    = errors.New("advertising: seller account not found")
	ErrForbidden         = errors.New("advertising: not the owner")
	ErrAlreadyAdvertised = errors.New("advertising: service is already advertised")
	ErrPaymentPending    = errors.New("advertising: a payment is already pending for this service")
	ErrAmountMismatch    = errors.New("advertising: expected total does not match the quote")
	ErrInvalidStatus     = errors.New("advertising: operation not allowed in current status")
	ErrInvalidMethod     = errors.New("advertising: unsupported payment method")
	ErrInvalidPage       = errors.New("advertising: invalid page")
	ErrCompanyInfo       = errors.New("advertising: company info not configured")
)
