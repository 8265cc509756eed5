package handlers

import (
	"bytes"
	"context"
	"io"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/tgrayson/streamtv/internal/service"
)

// PlaylistImporter imports an M3U playlist into the channel table.
type PlaylistImporter interface {
	ImportM3U(ctx context.Context, r io.Reader, opts service.ImportOptions) (*service.ImportResult, error)
}

// ImportHandler handles playlist import API endpoints.
type ImportHandler struct {
	importer PlaylistImporter
	logger   *slog.Logger
}

// NewImportHandler creates a new import handler.
func NewImportHandler(importer PlaylistImporter, logger *slog.Logger) *ImportHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImportHandler{importer: importer, logger: logger}
}

// Register registers the import routes with the API.
func (h *ImportHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "importPlaylist",
		Method:      "POST",
		Path:        "/api/v1/channels/import",
		Summary:     "Import M3U playlist",
		Description: "Creates channels from an M3U playlist body; gzip, bzip2, and xz compressed playlists are detected automatically",
		Tags:        []string{"Channels"},
	}, h.ImportM3U)
}

// ImportPlaylistInput is the input for importing a playlist.
type ImportPlaylistInput struct {
	StartNumber int  `query:"start_number" default:"100" doc:"First number assigned to entries without tvg-chno"`
	Overwrite   bool `query:"overwrite" doc:"Update channels whose number already exists"`
	Enable      bool `query:"enable" doc:"Create imported channels enabled"`

	RawBody []byte `contentType:"application/octet-stream"`
}

// ImportPlaylistOutput is the output for importing a playlist.
type ImportPlaylistOutput struct {
	Body service.ImportResult
}

// ImportM3U imports channels from the playlist in the request body.
func (h *ImportHandler) ImportM3U(ctx context.Context, input *ImportPlaylistInput) (*ImportPlaylistOutput, error) {
	if len(input.RawBody) == 0 {
		return nil, huma.Error400BadRequest("empty playlist body")
	}

	result, err := h.importer.ImportM3U(ctx, bytes.NewReader(input.RawBody), service.ImportOptions{
		StartNumber: input.StartNumber,
		Overwrite:   input.Overwrite,
		Enable:      input.Enable,
	})
	if err != nil {
		return nil, huma.Error400BadRequest("failed to import playlist", err)
	}

	h.logger.Info("playlist imported",
		slog.Int("created", result.Created),
		slog.Int("updated", result.Updated),
		slog.Int("skipped", result.Skipped),
	)
	return &ImportPlaylistOutput{Body: *result}, nil
}
