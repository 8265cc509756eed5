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

const defaultMediaPageSize = 100

// MediaHandler handles media item management API endpoints.
type MediaHandler struct {
	media  repository.MediaItemRepository
	logger *slog.Logger
}

// NewMediaHandler creates a new media handler.
func NewMediaHandler(media repository.MediaItemRepository, logger *slog.Logger) *MediaHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaHandler{media: media, logger: logger}
}

// Register registers the media routes with the API.
func (h *MediaHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listMedia",
		Method:      "GET",
		Path:        "/api/v1/media",
		Summary:     "List media items",
		Description: "Returns media items with pagination, or a title search when q is set",
		Tags:        []string{"Media"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getMediaItem",
		Method:      "GET",
		Path:        "/api/v1/media/{id}",
		Summary:     "Get media item",
		Tags:        []string{"Media"},
	}, h.GetByID)

	huma.Register(api, huma.Operation{
		OperationID: "createMediaItem",
		Method:      "POST",
		Path:        "/api/v1/media",
		Summary:     "Create media item",
		Description: "Creates a media item, or updates the existing row with the same URL",
		Tags:        []string{"Media"},
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID: "updateMediaItem",
		Method:      "PUT",
		Path:        "/api/v1/media/{id}",
		Summary:     "Update media item",
		Tags:        []string{"Media"},
	}, h.Update)

	huma.Register(api, huma.Operation{
		OperationID: "deleteMediaItem",
		Method:      "DELETE",
		Path:        "/api/v1/media/{id}",
		Summary:     "Delete media item",
		Description: "Fails while the item is still a member of any collection",
		Tags:        []string{"Media"},
	}, h.Delete)
}

// ListMediaInput is the input for listing media items.
type ListMediaInput struct {
	Offset int    `query:"offset" minimum:"0" doc:"Pagination offset"`
	Limit  int    `query:"limit" minimum:"0" maximum:"1000" doc:"Page size (default 100)"`
	Query  string `query:"q" doc:"Title search"`
}

// ListMediaOutput is the output for listing media items.
type ListMediaOutput struct {
	Body struct {
		Items []MediaItemResponse `json:"items"`
		Total int64               `json:"total"`
	}
}

// List returns media items with pagination or by title search.
func (h *MediaHandler) List(ctx context.Context, input *ListMediaInput) (*ListMediaOutput, error) {
	limit := input.Limit
	if limit == 0 {
		limit = defaultMediaPageSize
	}

	resp := &ListMediaOutput{}

	if input.Query != "" {
		items, err := h.media.Search(ctx, input.Query, limit)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to search media", err)
		}
		resp.Body.Items = mediaResponses(items)
		resp.Body.Total = int64(len(items))
		return resp, nil
	}

	items, total, err := h.media.GetAllPaginated(ctx, input.Offset, limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list media", err)
	}
	resp.Body.Items = mediaResponses(items)
	resp.Body.Total = total
	return resp, nil
}

func mediaResponses(items []*models.MediaItem) []MediaItemResponse {
	out := make([]MediaItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, MediaItemFromModel(item))
	}
	return out
}

// GetMediaInput is the input for getting a media item.
type GetMediaInput struct {
	ID string `path:"id" doc:"Media item ID (ULID)"`
}

// GetMediaOutput is the output for getting a media item.
type GetMediaOutput struct {
	Body MediaItemResponse
}

// GetByID returns a media item by ID.
func (h *MediaHandler) GetByID(ctx context.Context, input *GetMediaInput) (*GetMediaOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	item, err := h.media.GetByID(ctx, id)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get media item", err)
	}
	if item == nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("media item %s not found", input.ID))
	}
	return &GetMediaOutput{Body: MediaItemFromModel(item)}, nil
}

// MediaItemRequest is the mutable subset of a media item.
type MediaItemRequest struct {
	Source          string   `json:"source" enum:"youtube,archive_org,pbs,plex,direct"`
	SourceID        string   `json:"source_id,omitempty"`
	URL             string   `json:"url" doc:"Canonical catalog URL, the dedup key"`
	Title           string   `json:"title"`
	Description     string   `json:"description,omitempty"`
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
	Thumbnail       string   `json:"thumbnail,omitempty"`
	Uploader        string   `json:"uploader,omitempty"`
	UploadDate      string   `json:"upload_date,omitempty"`
	Metadata        string   `json:"metadata,omitempty" doc:"Opaque JSON blob (season/episode, air date)"`
}

func (req *MediaItemRequest) apply(m *models.MediaItem) {
	m.Source = req.Source
	m.SourceID = req.SourceID
	m.URL = req.URL
	m.Title = req.Title
	m.Description = req.Description
	m.DurationSeconds = req.DurationSeconds
	m.Thumbnail = req.Thumbnail
	m.Uploader = req.Uploader
	m.UploadDate = req.UploadDate
	m.Metadata = req.Metadata
}

// CreateMediaInput is the input for creating a media item.
type CreateMediaInput struct {
	Body MediaItemRequest
}

// CreateMediaOutput is the output for creating a media item.
type CreateMediaOutput struct {
	Body MediaItemResponse
}

// Create creates or upserts a media item by URL.
func (h *MediaHandler) Create(ctx context.Context, input *CreateMediaInput) (*CreateMediaOutput, error) {
	item := &models.MediaItem{}
	input.Body.apply(item)

	if err := h.media.Upsert(ctx, item); err != nil {
		if errors.Is(err, models.ErrURLRequired) {
			return nil, huma.Error400BadRequest("invalid media item", err)
		}
		return nil, huma.Error500InternalServerError("failed to create media item", err)
	}
	return &CreateMediaOutput{Body: MediaItemFromModel(item)}, nil
}

// UpdateMediaInput is the input for updating a media item.
type UpdateMediaInput struct {
	ID   string `path:"id" doc:"Media item ID (ULID)"`
	Body MediaItemRequest
}

// UpdateMediaOutput is the output for updating a media item.
type UpdateMediaOutput struct {
	Body MediaItemResponse
}

// Update updates an existing media item.
func (h *MediaHandler) Update(ctx context.Context, input *UpdateMediaInput) (*UpdateMediaOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	item, err := h.media.GetByID(ctx, id)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get media item", err)
	}
	if item == nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("media item %s not found", input.ID))
	}

	input.Body.apply(item)
	if err := h.media.Update(ctx, item); err != nil {
		return nil, huma.Error500InternalServerError("failed to update media item", err)
	}
	return &UpdateMediaOutput{Body: MediaItemFromModel(item)}, nil
}

// DeleteMediaInput is the input for deleting a media item.
type DeleteMediaInput struct {
	ID string `path:"id" doc:"Media item ID (ULID)"`
}

// Delete deletes a media item.
func (h *MediaHandler) Delete(ctx context.Context, input *DeleteMediaInput) (*struct{}, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	if err := h.media.Delete(ctx, id); err != nil {
		if errors.Is(err, models.ErrMediaItemReferenced) {
			return nil, huma.Error409Conflict("media item is still a collection member", err)
		}
		return nil, huma.Error500InternalServerError("failed to delete media item", err)
	}
	return &struct{}{}, nil
}
