package transmissions

import "errors"

var (
	ErrJustificationRequired = errors.New("override justification is required")
	ErrReasonRequired        = errors.New("rejection reason is required")
	ErrTransmissionNotFound  = errors.New("transmission not found")
	ErrSubmitterRequired     = errors.New("submitter identity is required")
)
