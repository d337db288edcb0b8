package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_BuildsBothModes(t *testing.T) {
	for _, development := range []bool{true, false} {
		logger, err := New(development)
		require.NoError(t, err)
		require.NotNil(t, logger)
	}
}

func TestPromptDigest_StableAndTruncated(t *testing.T) {
	// Given the same prompt twice
	first := PromptDigest("some system prompt")
	second := PromptDigest("some system prompt")

	// Then the digest is deterministic and fixed-length
	assert.Equal(t, first, second)
	assert.Len(t, first, PromptDigestLen)

	// And different prompts diverge
	assert.NotEqual(t, first, PromptDigest("another prompt"))
}

func TestPromptDigest_NeverContainsPromptText(t *testing.T) {
	digest := PromptDigest("secret")
	assert.NotContains(t, digest, "secret")
}
