// Package service generates natural-language insights over a workspace's
// extracted records by handing them to a language model as CSV.
package service

import (
	"context"

	"github.com/ledgerscan/ledgerscan-backend/internal/extraction/domain"
	"github.com/ledgerscan/ledgerscan-backend/internal/llm"
	"github.com/ledgerscan/ledgerscan-backend/pkg/errors"
	"github.com/ledgerscan/ledgerscan-backend/pkg/logger"
)

// RecordSource yields the ordered records of a workspace
type RecordSource interface {
	ListRecords(workspaceID string) ([]domain.Record, error)
}

// Service answers questions about a workspace's records. Providers are
// tried in order until one answers, same as extraction.
type Service struct {
	records   RecordSource
	providers []llm.TextGenerator
	logger    *logger.Logger
}

// NewService creates a new insights service
func NewService(records RecordSource, providers []llm.TextGenerator, log *logger.Logger) *Service {
	return &Service{
		records:   records,
		providers: providers,
		logger:    log,
	}
}

// Generate produces an insights answer for the workspace. An empty
// question asks for a general summary of the records.
func (s *Service) Generate(ctx context.Context, workspaceID, question string) (string, error) {
	records, err := s.records.ListRecords(workspaceID)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", errors.EmptyWorkspace()
	}

	req := llm.Request{
		System: buildSystemPrompt(),
		Prompt: buildUserPrompt(records, question),
	}

	var lastErr error
	for _, provider := range s.providers {
		answer, err := provider.GenerateText(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return "", err
			}
			lastErr = err
			s.logger.Warn().
				Err(err).
				Str("provider", provider.Name()).
				Str("workspace_id", workspaceID).
				Msg("insights provider failed, trying next")
			continue
		}

		s.logger.Info().
			Str("provider", provider.Name()).
			Str("workspace_id", workspaceID).
			Int("records", len(records)).
			Msg("insights generated")
		return answer, nil
	}

	if lastErr != nil {
		s.logger.Error().Err(lastErr).Str("workspace_id", workspaceID).Msg("all insights providers failed")
	}
	return "", errors.Internal("failed to generate insights")
}
