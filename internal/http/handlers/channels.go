package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/tgrayson/streamtv/internal/models"
	"github.com/tgrayson/streamtv/internal/repository"
)

// ChannelHandler handles channel management API endpoints.
type ChannelHandler struct {
	channels repository.ChannelRepository
	logger   *slog.Logger
}

// NewChannelHandler creates a new channel handler.
func NewChannelHandler(channels repository.ChannelRepository, logger *slog.Logger) *ChannelHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChannelHandler{channels: channels, logger: logger}
}

// Register registers the channel routes with the API.
func (h *ChannelHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listChannels",
		Method:      "GET",
		Path:        "/api/v1/channels",
		Summary:     "List channels",
		Description: "Returns all channels ordered by number",
		Tags:        []string{"Channels"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getChannel",
		Method:      "GET",
		Path:        "/api/v1/channels/{number}",
		Summary:     "Get channel",
		Description: "Returns a channel by its lineup number",
		Tags:        []string{"Channels"},
	}, h.GetByNumber)

	huma.Register(api, huma.Operation{
		OperationID: "createChannel",
		Method:      "POST",
		Path:        "/api/v1/channels",
		Summary:     "Create channel",
		Description: "Creates a new channel",
		Tags:        []string{"Channels"},
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID: "updateChannel",
		Method:      "PUT",
		Path:        "/api/v1/channels/{number}",
		Summary:     "Update channel",
		Description: "Updates an existing channel",
		Tags:        []string{"Channels"},
	}, h.Update)

	huma.Register(api, huma.Operation{
		OperationID: "deleteChannel",
		Method:      "DELETE",
		Path:        "/api/v1/channels/{number}",
		Summary:     "Delete channel",
		Description: "Deletes a channel, its schedule, and its playout position",
		Tags:        []string{"Channels"},
	}, h.Delete)
}

// ChannelRequest is the mutable subset of a channel.
type ChannelRequest struct {
	Number           string `json:"number" doc:"Lineup number, unique numeric string"`
	Name             string `json:"name" doc:"Display name"`
	Group            string `json:"group,omitempty"`
	Enabled          *bool  `json:"enabled,omitempty"`
	LogoPath         string `json:"logo_path,omitempty"`
	PlayoutMode      string `json:"playout_mode,omitempty" enum:"CONTINUOUS,ON_DEMAND"`
	ProfileID        string `json:"profile_id,omitempty"`
	HWAccelHint      string `json:"hwaccel_hint,omitempty"`
	AudioLanguage    string `json:"audio_language,omitempty"`
	SubtitleLanguage string `json:"subtitle_language,omitempty"`
}

func (req *ChannelRequest) apply(ch *models.Channel) error {
	ch.Number = req.Number
	ch.Name = req.Name
	ch.Group = req.Group
	if req.Enabled != nil {
		ch.Enabled = req.Enabled
	}
	ch.LogoPath = req.LogoPath
	if req.PlayoutMode != "" {
		ch.PlayoutMode = req.PlayoutMode
	}
	ch.HWAccelHint = req.HWAccelHint
	ch.AudioLanguage = req.AudioLanguage
	ch.SubtitleLanguage = req.SubtitleLanguage
	if req.ProfileID != "" {
		id, err := models.ParseULID(req.ProfileID)
		if err != nil {
			return fmt.Errorf("parsing profile_id: %w", err)
		}
		ch.ProfileID = &id
	} else {
		ch.ProfileID = nil
	}
	return nil
}

// ListChannelsInput is the input for listing channels.
type ListChannelsInput struct {
	Enabled bool `query:"enabled" doc:"Only return enabled channels"`
}

// ListChannelsOutput is the output for listing channels.
type ListChannelsOutput struct {
	Body struct {
		Channels []ChannelResponse `json:"channels"`
	}
}

// List returns all channels.
func (h *ChannelHandler) List(ctx context.Context, input *ListChannelsInput) (*ListChannelsOutput, error) {
	var (
		channels []*models.Channel
		err      error
	)
	if input.Enabled {
		channels, err = h.channels.GetEnabled(ctx)
	} else {
		channels, err = h.channels.GetAll(ctx)
	}
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list channels", err)
	}

	resp := &ListChannelsOutput{}
	resp.Body.Channels = make([]ChannelResponse, 0, len(channels))
	for _, ch := range channels {
		resp.Body.Channels = append(resp.Body.Channels, ChannelFromModel(ch))
	}
	return resp, nil
}

// GetChannelInput is the input for getting a channel.
type GetChannelInput struct {
	Number string `path:"number" doc:"Channel lineup number"`
}

// GetChannelOutput is the output for getting a channel.
type GetChannelOutput struct {
	Body ChannelResponse
}

// GetByNumber returns a channel by lineup number.
func (h *ChannelHandler) GetByNumber(ctx context.Context, input *GetChannelInput) (*GetChannelOutput, error) {
	ch, err := h.channels.GetByNumber(ctx, input.Number)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get channel", err)
	}
	if ch == nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("channel %s not found", input.Number))
	}
	return &GetChannelOutput{Body: ChannelFromModel(ch)}, nil
}

// CreateChannelInput is the input for creating a channel.
type CreateChannelInput struct {
	Body ChannelRequest
}

// CreateChannelOutput is the output for creating a channel.
type CreateChannelOutput struct {
	Body ChannelResponse
}

// Create creates a new channel.
func (h *ChannelHandler) Create(ctx context.Context, input *CreateChannelInput) (*CreateChannelOutput, error) {
	ch := &models.Channel{}
	if err := input.Body.apply(ch); err != nil {
		return nil, huma.Error400BadRequest("invalid channel", err)
	}

	if err := h.channels.Create(ctx, ch); err != nil {
		if errors.Is(err, models.ErrChannelNumberRequired) ||
			errors.Is(err, models.ErrChannelNumberNumeric) ||
			errors.Is(err, models.ErrNameRequired) {
			return nil, huma.Error400BadRequest("invalid channel", err)
		}
		return nil, huma.Error500InternalServerError("failed to create channel", err)
	}

	h.logger.Info("channel created",
		slog.String("number", ch.Number),
		slog.String("name", ch.Name),
	)
	return &CreateChannelOutput{Body: ChannelFromModel(ch)}, nil
}

// UpdateChannelInput is the input for updating a channel.
type UpdateChannelInput struct {
	Number string `path:"number" doc:"Channel lineup number"`
	Body   ChannelRequest
}

// UpdateChannelOutput is the output for updating a channel.
type UpdateChannelOutput struct {
	Body ChannelResponse
}

// Update updates an existing channel.
func (h *ChannelHandler) Update(ctx context.Context, input *UpdateChannelInput) (*UpdateChannelOutput, error) {
	ch, err := h.channels.GetByNumber(ctx, input.Number)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get channel", err)
	}
	if ch == nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("channel %s not found", input.Number))
	}

	if err := input.Body.apply(ch); err != nil {
		return nil, huma.Error400BadRequest("invalid channel", err)
	}

	if err := h.channels.Update(ctx, ch); err != nil {
		return nil, huma.Error500InternalServerError("failed to update channel", err)
	}
	return &UpdateChannelOutput{Body: ChannelFromModel(ch)}, nil
}

// DeleteChannelInput is the input for deleting a channel.
type DeleteChannelInput struct {
	Number string `path:"number" doc:"Channel lineup number"`
}

// DeleteChannelOutput is the output for deleting a channel.
type DeleteChannelOutput struct{}

// Delete deletes a channel.
func (h *ChannelHandler) Delete(ctx context.Context, input *DeleteChannelInput) (*DeleteChannelOutput, error) {
	ch, err := h.channels.GetByNumber(ctx, input.Number)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get channel", err)
	}
	if ch == nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("channel %s not found", input.Number))
	}

	if err := h.channels.Delete(ctx, ch.ID); err != nil {
		return nil, huma.Error500InternalServerError("failed to delete channel", err)
	}

	h.logger.Info("channel deleted", slog.String("number", ch.Number))
	return &DeleteChannelOutput{}, nil
}
