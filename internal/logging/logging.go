// Package logging constructs the zap loggers used across the engine for the
// audit trail and operational output. Prompts and credentials never appear in
// log lines; remote calls are identified by truncated content digests only.
package logging

import (
	"crypto/sha256"
	"encoding/hex"

	"go.uber.org/zap"
)

// New builds a structured logger. Development mode switches to the
// human-readable console encoder for interactive runs; production mode emits
// JSON lines suitable for ingestion.
func New(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// PromptDigestLen is the number of hex characters kept from a prompt digest.
// Twelve characters are enough to correlate audit lines with stored records
// without reproducing prompt content in the log.
const PromptDigestLen = 12

// PromptDigest returns a truncated SHA-256 digest identifying a prompt in the
// audit trail without storing its text.
func PromptDigest(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])[:PromptDigestLen]
}
