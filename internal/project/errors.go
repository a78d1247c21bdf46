package project

import "errors"

// Domain-level error values returned by the project service.
var (
	ErrProjectNotFound   = errors.New("project not found")
	ErrProjectLimit      = errors.New("project limit reached")
	ErrInvalidDraft      = errors.New("invalid project draft")
	ErrNotGeneratable    = errors.New("project is not in a generatable state")
	ErrProjectGenerating = errors.New("project generation in progress")
	ErrGenerationFailed  = errors.New("generation failed")
	ErrInvalidConfig     = errors.New("invalid project service config")
)
