package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"
	"gorm.io/gorm"

	"github.com/tgrayson/streamtv/internal/models"
	"github.com/tgrayson/streamtv/internal/repository"
)

// CollectionHandler handles collection management API endpoints.
type CollectionHandler struct {
	collections repository.CollectionRepository
	logger      *slog.Logger
}

// NewCollectionHandler creates a new collection handler.
func NewCollectionHandler(collections repository.CollectionRepository, logger *slog.Logger) *CollectionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CollectionHandler{collections: collections, logger: logger}
}

// Register registers the collection routes with the API.
func (h *CollectionHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listCollections",
		Method:      "GET",
		Path:        "/api/v1/collections",
		Summary:     "List collections",
		Tags:        []string{"Collections"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getCollection",
		Method:      "GET",
		Path:        "/api/v1/collections/{id}",
		Summary:     "Get collection",
		Description: "Returns a collection with its members in position order",
		Tags:        []string{"Collections"},
	}, h.GetByID)

	huma.Register(api, huma.Operation{
		OperationID: "createCollection",
		Method:      "POST",
		Path:        "/api/v1/collections",
		Summary:     "Create collection",
		Tags:        []string{"Collections"},
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID: "updateCollection",
		Method:      "PUT",
		Path:        "/api/v1/collections/{id}",
		Summary:     "Update collection",
		Tags:        []string{"Collections"},
	}, h.Update)

	huma.Register(api, huma.Operation{
		OperationID: "deleteCollection",
		Method:      "DELETE",
		Path:        "/api/v1/collections/{id}",
		Summary:     "Delete collection",
		Description: "Deletes a collection; member media items are kept",
		Tags:        []string{"Collections"},
	}, h.Delete)

	huma.Register(api, huma.Operation{
		OperationID: "setCollectionItems",
		Method:      "PUT",
		Path:        "/api/v1/collections/{id}/items",
		Summary:     "Set collection members",
		Description: "Replaces the membership, positions assigned from array order",
		Tags:        []string{"Collections"},
	}, h.SetItems)

	huma.Register(api, huma.Operation{
		OperationID: "addCollectionItem",
		Method:      "POST",
		Path:        "/api/v1/collections/{id}/items/{mediaID}",
		Summary:     "Add collection member",
		Tags:        []string{"Collections"},
	}, h.AddItem)

	huma.Register(api, huma.Operation{
		OperationID: "removeCollectionItem",
		Method:      "DELETE",
		Path:        "/api/v1/collections/{id}/items/{mediaID}",
		Summary:     "Remove collection member",
		Tags:        []string{"Collections"},
	}, h.RemoveItem)
}

// ListCollectionsOutput is the output for listing collections.
type ListCollectionsOutput struct {
	Body struct {
		Collections []CollectionResponse `json:"collections"`
	}
}

// List returns all collections.
func (h *CollectionHandler) List(ctx context.Context, _ *struct{}) (*ListCollectionsOutput, error) {
	collections, err := h.collections.GetAll(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list collections", err)
	}

	resp := &ListCollectionsOutput{}
	resp.Body.Collections = make([]CollectionResponse, 0, len(collections))
	for _, c := range collections {
		resp.Body.Collections = append(resp.Body.Collections, CollectionFromModel(c))
	}
	return resp, nil
}

// GetCollectionInput is the input for getting a collection.
type GetCollectionInput struct {
	ID string `path:"id" doc:"Collection ID (ULID)"`
}

// GetCollectionOutput is the output for getting a collection.
type GetCollectionOutput struct {
	Body struct {
		CollectionResponse
		Items []MediaItemResponse `json:"items"`
	}
}

// GetByID returns a collection with its members.
func (h *CollectionHandler) GetByID(ctx context.Context, input *GetCollectionInput) (*GetCollectionOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	collection, err := h.collections.GetByID(ctx, id)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get collection", err)
	}
	if collection == nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("collection %s not found", input.ID))
	}

	items, err := h.collections.GetItems(ctx, id)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get collection items", err)
	}

	resp := &GetCollectionOutput{}
	resp.Body.CollectionResponse = CollectionFromModel(collection)
	resp.Body.Items = make([]MediaItemResponse, 0, len(items))
	for _, item := range items {
		resp.Body.Items = append(resp.Body.Items, MediaItemFromModel(item))
	}
	resp.Body.ItemCount = len(items)
	return resp, nil
}

// CollectionRequest is the mutable subset of a collection.
type CollectionRequest struct {
	Name  string `json:"name" doc:"Unique collection name, referenced by schedules"`
	Type  string `json:"type,omitempty" enum:"MANUAL,SMART,"`
	Query string `json:"query,omitempty" doc:"Member-selection expression for SMART collections"`
}

// CreateCollectionInput is the input for creating a collection.
type CreateCollectionInput struct {
	Body CollectionRequest
}

// CreateCollectionOutput is the output for creating a collection.
type CreateCollectionOutput struct {
	Body CollectionResponse
}

// Create creates a new collection.
func (h *CollectionHandler) Create(ctx context.Context, input *CreateCollectionInput) (*CreateCollectionOutput, error) {
	collection := &models.Collection{
		Name:  input.Body.Name,
		Type:  input.Body.Type,
		Query: input.Body.Query,
	}

	if err := h.collections.Create(ctx, collection); err != nil {
		if errors.Is(err, models.ErrNameRequired) {
			return nil, huma.Error400BadRequest("invalid collection", err)
		}
		return nil, huma.Error500InternalServerError("failed to create collection", err)
	}

	h.logger.Info("collection created", slog.String("name", collection.Name))
	return &CreateCollectionOutput{Body: CollectionFromModel(collection)}, nil
}

// UpdateCollectionInput is the input for updating a collection.
type UpdateCollectionInput struct {
	ID   string `path:"id" doc:"Collection ID (ULID)"`
	Body CollectionRequest
}

// UpdateCollectionOutput is the output for updating a collection.
type UpdateCollectionOutput struct {
	Body CollectionResponse
}

// Update updates an existing collection.
func (h *CollectionHandler) Update(ctx context.Context, input *UpdateCollectionInput) (*UpdateCollectionOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	collection, err := h.collections.GetByID(ctx, id)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get collection", err)
	}
	if collection == nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("collection %s not found", input.ID))
	}

	collection.Name = input.Body.Name
	collection.Type = input.Body.Type
	collection.Query = input.Body.Query

	if err := h.collections.Update(ctx, collection); err != nil {
		return nil, huma.Error500InternalServerError("failed to update collection", err)
	}
	return &UpdateCollectionOutput{Body: CollectionFromModel(collection)}, nil
}

// DeleteCollectionInput is the input for deleting a collection.
type DeleteCollectionInput struct {
	ID string `path:"id" doc:"Collection ID (ULID)"`
}

// Delete deletes a collection.
func (h *CollectionHandler) Delete(ctx context.Context, input *DeleteCollectionInput) (*struct{}, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	if err := h.collections.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("collection %s not found", input.ID))
		}
		return nil, huma.Error500InternalServerError("failed to delete collection", err)
	}
	return &struct{}{}, nil
}

// SetCollectionItemsInput is the input for replacing membership.
type SetCollectionItemsInput struct {
	ID   string `path:"id" doc:"Collection ID (ULID)"`
	Body struct {
		MediaItemIDs []string `json:"media_item_ids" doc:"Member IDs in playout order"`
	}
}

// SetItems replaces a collection's membership.
func (h *CollectionHandler) SetItems(ctx context.Context, input *SetCollectionItemsInput) (*struct{}, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	ids := make([]models.ULID, 0, len(input.Body.MediaItemIDs))
	for _, raw := range input.Body.MediaItemIDs {
		itemID, err := models.ParseULID(raw)
		if err != nil {
			return nil, huma.Error400BadRequest(fmt.Sprintf("invalid media item ID %q", raw), err)
		}
		ids = append(ids, itemID)
	}

	if err := h.collections.SetItems(ctx, id, ids); err != nil {
		return nil, huma.Error500InternalServerError("failed to set collection items", err)
	}
	return &struct{}{}, nil
}

// CollectionItemInput identifies one member of a collection.
type CollectionItemInput struct {
	ID      string `path:"id" doc:"Collection ID (ULID)"`
	MediaID string `path:"mediaID" doc:"Media item ID (ULID)"`
}

// AddItem appends a media item to the collection.
func (h *CollectionHandler) AddItem(ctx context.Context, input *CollectionItemInput) (*struct{}, error) {
	id, mediaID, err := parseCollectionItemIDs(input)
	if err != nil {
		return nil, err
	}
	if err := h.collections.AddItem(ctx, id, mediaID); err != nil {
		return nil, huma.Error500InternalServerError("failed to add collection item", err)
	}
	return &struct{}{}, nil
}

// RemoveItem removes a media item from the collection.
func (h *CollectionHandler) RemoveItem(ctx context.Context, input *CollectionItemInput) (*struct{}, error) {
	id, mediaID, err := parseCollectionItemIDs(input)
	if err != nil {
		return nil, err
	}
	if err := h.collections.RemoveItem(ctx, id, mediaID); err != nil {
		return nil, huma.Error500InternalServerError("failed to remove collection item", err)
	}
	return &struct{}{}, nil
}

func parseCollectionItemIDs(input *CollectionItemInput) (models.ULID, models.ULID, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return models.ULID{}, models.ULID{}, huma.Error400BadRequest("invalid collection ID", err)
	}
	mediaID, err := models.ParseULID(input.MediaID)
	if err != nil {
		return models.ULID{}, models.ULID{}, huma.Error400BadRequest("invalid media item ID", err)
	}
	return id, mediaID, nil
}
