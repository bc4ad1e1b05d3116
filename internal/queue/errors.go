package queue

import "errors"

var (
	ErrNameRequired     = errors.New("business name is required")
	ErrServiceRequired  = errors.New("service_id is required for perService numbering")
	ErrUnknownService   = errors.New("unknown or disabled service")
	ErrDuplicateService = errors.New("duplicate service id")
	ErrInvalidMode      = errors.New("unrecognized numbering mode")
	ErrInvalidStatus    = errors.New("status must be open or closed")
	ErrNoFields         = errors.New("no fields to update")
)
