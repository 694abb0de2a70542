package llm

import (
	"context"
	"errors"
)

var (
	// ErrExtractionFailed marks a request that produced no usable result after
	// retries. Callers treat it as an empty contribution.
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrRateLimited marks an upstream rate-limit response (HTTP 429).
	ErrRateLimited = errors.New("rate limited")
)

// Contract describes one request to the model.
type Contract struct {
	// System holds the instructions.
	System string
	// User holds the task input.
	User string
	// Schema constrains the response to JSON when set; otherwise the response
	// is free text.
	Schema *Schema
}

// Schema is a named JSON schema for structured output.
type Schema struct {
	Name       string
	Definition map[string]any
	Strict     bool
}

// Extractor performs one logical round trip to the model.
type Extractor interface {
	Extract(ctx context.Context, contract Contract) (string, error)
}
