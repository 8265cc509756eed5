package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/tgrayson/streamtv/internal/repository"
)

// PositionHandler exposes the persistent playout position of a channel.
// Resetting a position makes the next broadcast start the timeline from
// scratch with a fresh anchor.
type PositionHandler struct {
	channels  repository.ChannelRepository
	positions repository.PlaybackPositionRepository
	logger    *slog.Logger
}

// NewPositionHandler creates a new position handler.
func NewPositionHandler(channels repository.ChannelRepository, positions repository.PlaybackPositionRepository, logger *slog.Logger) *PositionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PositionHandler{channels: channels, positions: positions, logger: logger}
}

// Register registers the position routes with the API.
func (h *PositionHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getChannelPosition",
		Method:      "GET",
		Path:        "/api/v1/channels/{number}/position",
		Summary:     "Get playout position",
		Description: "Returns the persisted playout position for a channel",
		Tags:        []string{"Channels"},
	}, h.Get)

	huma.Register(api, huma.Operation{
		OperationID: "resetChannelPosition",
		Method:      "DELETE",
		Path:        "/api/v1/channels/{number}/position",
		Summary:     "Reset playout position",
		Description: "Deletes the persisted playout position so the channel restarts its timeline",
		Tags:        []string{"Channels"},
	}, h.Reset)
}

// GetPositionInput is the input for getting a playout position.
type GetPositionInput struct {
	Number string `path:"number" doc:"Channel lineup number"`
}

// GetPositionOutput is the output for getting a playout position.
type GetPositionOutput struct {
	Body PositionResponse
}

// Get returns the persisted playout position for a channel.
func (h *PositionHandler) Get(ctx context.Context, input *GetPositionInput) (*GetPositionOutput, error) {
	ch, err := h.channels.GetByNumber(ctx, input.Number)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get channel", err)
	}
	if ch == nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("channel %s not found", input.Number))
	}

	position, err := h.positions.GetByChannelID(ctx, ch.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get playout position", err)
	}
	if position == nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("channel %s has no playout position", input.Number))
	}
	return &GetPositionOutput{Body: PositionFromModel(position)}, nil
}

// ResetPositionInput is the input for resetting a playout position.
type ResetPositionInput struct {
	Number string `path:"number" doc:"Channel lineup number"`
}

// ResetPositionOutput is the output for resetting a playout position.
type ResetPositionOutput struct{}

// Reset deletes the persisted playout position for a channel.
func (h *PositionHandler) Reset(ctx context.Context, input *ResetPositionInput) (*ResetPositionOutput, error) {
	ch, err := h.channels.GetByNumber(ctx, input.Number)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get channel", err)
	}
	if ch == nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("channel %s not found", input.Number))
	}

	if err := h.positions.Delete(ctx, ch.ID); err != nil {
		return nil, huma.Error500InternalServerError("failed to reset playout position", err)
	}

	h.logger.Info("playout position reset", slog.String("number", ch.Number))
	return &ResetPositionOutput{}, nil
}
