package messages

import (
	"context"

	"parley/pkg/models"
)

// FetchMessage loads one message through its channel.
func (s *Service) FetchMessage(ctx context.Context, channelID, messageID string) (*models.Message, error) {
	return s.fetchInChannel(ctx, channelID, messageID)
}

// ListMessages reads a page of channel history.
func (s *Service) ListMessages(ctx context.Context, channelID string, opts ListOptions) ([]models.Message, error) {
	if _, err := s.store.FetchChannel(ctx, channelID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, channelID, opts)
}
