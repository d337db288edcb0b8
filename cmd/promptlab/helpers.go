package main

import (
	"context"
	"errors"

	"github.com/ahrav/promptlab/internal/ports"
)

var errNoClient = errors.New("no completion client configured")

// noopClient satisfies ports.CompletionClient for code paths that never make
// remote calls, such as dry runs.
type noopClient struct{}

var _ ports.CompletionClient = noopClient{}

func (noopClient) Complete(context.Context, string, map[string]any) (string, error) {
	return "", errNoClient
}

func (noopClient) CompleteWithUsage(context.Context, string, map[string]any) (string, int, int, error) {
	return "", 0, 0, errNoClient
}

func (noopClient) GetModel() string { return "none" }
