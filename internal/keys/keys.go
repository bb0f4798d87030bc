// Package keys mints fresh chain identities through the chain client binary.
package keys

import (
	"context"
	"fmt"
	"strings"

	"github.com/kelsos/chainbot/internal/logger"
	"github.com/kelsos/chainbot/internal/models"
	"github.com/kelsos/chainbot/internal/process"
)

const generateFlag = "--generate-test-keys"

// GenerationError is returned when a key pair could not be minted
type GenerationError struct {
	Reason string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("key generation failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("key generation failed: %s", e.Reason)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Generator mints address and key pairs
type Generator struct {
	runner process.Runner
}

func NewGenerator(runner process.Runner) *Generator {
	return &Generator{runner: runner}
}

// Generate runs the client once; there is no retry.
func (g *Generator) Generate(ctx context.Context) (models.KeyPair, error) {
	lines, err := g.runner.Run(ctx, generateFlag)
	if err != nil {
		return models.KeyPair{}, &GenerationError{Reason: "chain client failed", Err: err}
	}

	if len(lines) < 3 {
		return models.KeyPair{}, &GenerationError{Reason: fmt.Sprintf("expected 3 output lines, got %d", len(lines))}
	}

	keys := models.KeyPair{
		Address:    strings.TrimSpace(lines[0]),
		PublicKey:  strings.TrimSpace(lines[1]),
		PrivateKey: strings.TrimSpace(lines[2]),
	}

	if keys.Address == "" || keys.PublicKey == "" || keys.PrivateKey == "" {
		return models.KeyPair{}, &GenerationError{Reason: "chain client returned an empty key line"}
	}

	logger.Debug("Generated new address %s", keys.Address)
	return keys, nil
}
