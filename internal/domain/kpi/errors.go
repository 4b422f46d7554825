package kpi

import "errors"

var (
	ErrUnknownRole     = errors.New("unknown role")
	ErrMissingMetric   = errors.New("metric value is required")
	ErrInvalidMetric   = errors.New("metric value is invalid")
	ErrTemplateWeights = errors.New("metric template weights must sum to 100")
	ErrInvalidTemplate = errors.New("metric template is invalid")
)
