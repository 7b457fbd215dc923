package narrative

import (
	"context"
	"errors"
)

// ErrOffline is returned by the offline generator. The gateway answers every
// request with fallback content when it sees it.
var ErrOffline = errors.New("narrative engine offline: no API key configured")

// Generator is the external text-generation service. One call is one
// request/response pair.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// OfflineGenerator stands in when no credential is configured.
type OfflineGenerator struct{}

func (OfflineGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	return "", ErrOffline
}
