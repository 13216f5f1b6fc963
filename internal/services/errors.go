package services

import "errors"

var (
	ErrTenantNotFound   = errors.New("tenant not found")
	ErrNoCoachAvailable = errors.New("no coach available for this tenant")
	ErrEmptyMessage     = errors.New("message content is empty")
	ErrMessageTooLong   = errors.New("message content is too long")
	ErrTenantMismatch   = errors.New("identity is not bound to this tenant")
	ErrInvalidReceiver  = errors.New("receiver is not a member of this tenant")
	ErrSelfModeration   = errors.New("cannot block or report yourself")
	ErrReasonRequired   = errors.New("report reason is required")
	ErrTenantHasClients = errors.New("tenant still has active clients")

	ErrBusinessNameRequired = errors.New("business name is required")
	ErrInvalidSubdomain     = errors.New("subdomain must be 1-63 lowercase letters, digits or hyphens")
	ErrInvalidDomain        = errors.New("custom domain is not a valid hostname")
	ErrInvalidColor         = errors.New("color must be a hex value like #2563eb")
	ErrInvalidPlanTier      = errors.New("unknown plan tier")
	ErrUnsupportedAsset     = errors.New("unsupported brand asset")
)
