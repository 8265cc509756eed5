package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/danielgtaylor/huma/v2"

	"github.com/tgrayson/streamtv/internal/config"
	"github.com/tgrayson/streamtv/internal/models"
	"github.com/tgrayson/streamtv/internal/repository"
	"github.com/tgrayson/streamtv/internal/schedule"
)

// ScheduleHandler handles schedule import/export API endpoints.
type ScheduleHandler struct {
	cfg       *config.Config
	channels  repository.ChannelRepository
	schedules repository.ScheduleRepository
	logger    *slog.Logger
}

// NewScheduleHandler creates a new schedule handler.
func NewScheduleHandler(
	cfg *config.Config,
	channels repository.ChannelRepository,
	schedules repository.ScheduleRepository,
	logger *slog.Logger,
) *ScheduleHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScheduleHandler{
		cfg:       cfg,
		channels:  channels,
		schedules: schedules,
		logger:    logger,
	}
}

// Register registers the schedule routes with the API.
func (h *ScheduleHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getChannelSchedule",
		Method:      "GET",
		Path:        "/api/v1/channels/{number}/schedule",
		Summary:     "Get channel schedule",
		Description: "Returns the schedule definition for a channel",
		Tags:        []string{"Schedules"},
	}, h.Get)

	huma.Register(api, huma.Operation{
		OperationID: "exportChannelScheduleYAML",
		Method:      "GET",
		Path:        "/api/v1/channels/{number}/schedule/yaml",
		Summary:     "Export schedule YAML",
		Description: "Returns the raw YAML schedule document for a channel",
		Tags:        []string{"Schedules"},
	}, h.ExportYAML)

	huma.Register(api, huma.Operation{
		OperationID: "importChannelScheduleYAML",
		Method:      "PUT",
		Path:        "/api/v1/channels/{number}/schedule/yaml",
		Summary:     "Import schedule YAML",
		Description: "Validates and installs a YAML schedule for a channel",
		Tags:        []string{"Schedules"},
	}, h.ImportYAML)

	huma.Register(api, huma.Operation{
		OperationID: "deleteChannelSchedule",
		Method:      "DELETE",
		Path:        "/api/v1/channels/{number}/schedule",
		Summary:     "Delete channel schedule",
		Description: "Removes the DB schedule and any YAML file for the channel",
		Tags:        []string{"Schedules"},
	}, h.Delete)
}

func (h *ScheduleHandler) channelByNumber(ctx context.Context, number string) (*models.Channel, error) {
	ch, err := h.channels.GetByNumber(ctx, number)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get channel", err)
	}
	if ch == nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("channel %s not found", number))
	}
	return ch, nil
}

// ScheduleInput identifies a channel's schedule.
type ScheduleInput struct {
	Number string `path:"number" doc:"Channel lineup number"`
}

// ScheduleItemResponse is the API representation of one schedule row.
type ScheduleItemResponse struct {
	Position        int     `json:"position"`
	StartType       string  `json:"start_type"`
	StartTime       string  `json:"start_time,omitempty"`
	TargetType      string  `json:"target_type"`
	TargetID        string  `json:"target_id,omitempty"`
	TargetName      string  `json:"target_name,omitempty"`
	PlaybackOrder   string  `json:"playback_order"`
	PlayoutMode     string  `json:"playout_mode"`
	MultipleCount   int     `json:"multiple_count,omitempty"`
	PlayoutDuration float64 `json:"playout_duration,omitempty"`
	CustomTitle     string  `json:"custom_title,omitempty"`
}

// GetScheduleOutput is the output for getting a schedule.
type GetScheduleOutput struct {
	Body struct {
		ChannelNumber string                 `json:"channel_number"`
		Name          string                 `json:"name,omitempty"`
		Kind          string                 `json:"kind"`
		SourcePath    string                 `json:"source_path,omitempty"`
		Items         []ScheduleItemResponse `json:"items,omitempty"`
	}
}

// Get returns a channel's schedule definition.
func (h *ScheduleHandler) Get(ctx context.Context, input *ScheduleInput) (*GetScheduleOutput, error) {
	ch, herr := h.channelByNumber(ctx, input.Number)
	if herr != nil {
		return nil, herr
	}

	sched, err := h.schedules.GetByChannelID(ctx, ch.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get schedule", err)
	}
	if sched == nil {
		// A YAML file without a DB mirror still counts.
		if _, ferr := schedule.FindScheduleFile(h.cfg.Playout.SchedulesDir, ch.Number); ferr == nil {
			resp := &GetScheduleOutput{}
			resp.Body.ChannelNumber = ch.Number
			resp.Body.Kind = string(models.ScheduleYAML)
			return resp, nil
		}
		return nil, huma.Error404NotFound(fmt.Sprintf("channel %s has no schedule", input.Number))
	}

	resp := &GetScheduleOutput{}
	resp.Body.ChannelNumber = ch.Number
	resp.Body.Name = sched.Name
	resp.Body.Kind = string(sched.Kind())
	resp.Body.SourcePath = sched.SourcePath
	resp.Body.Items = make([]ScheduleItemResponse, 0, len(sched.Items))
	for _, item := range sched.Items {
		row := ScheduleItemResponse{
			Position:        item.Position,
			StartType:       string(item.StartType),
			StartTime:       item.StartTime,
			TargetType:      item.TargetType,
			TargetName:      item.TargetName,
			PlaybackOrder:   item.PlaybackOrder,
			PlayoutMode:     string(item.PlayoutMode),
			MultipleCount:   item.MultipleCount,
			PlayoutDuration: item.PlayoutDuration,
			CustomTitle:     item.CustomTitle,
		}
		if !item.TargetID.IsZero() {
			row.TargetID = item.TargetID.String()
		}
		resp.Body.Items = append(resp.Body.Items, row)
	}
	return resp, nil
}

// ExportScheduleOutput carries a raw YAML document.
type ExportScheduleOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// ExportYAML returns the raw YAML schedule document for a channel.
func (h *ScheduleHandler) ExportYAML(ctx context.Context, input *ScheduleInput) (*ExportScheduleOutput, error) {
	ch, herr := h.channelByNumber(ctx, input.Number)
	if herr != nil {
		return nil, herr
	}

	path, err := schedule.FindScheduleFile(h.cfg.Playout.SchedulesDir, ch.Number)
	if err == nil {
		data, rerr := os.ReadFile(path)
		if rerr != nil {
			return nil, huma.Error500InternalServerError("failed to read schedule file", rerr)
		}
		return &ExportScheduleOutput{ContentType: "application/yaml", Body: data}, nil
	}
	if !errors.Is(err, schedule.ErrScheduleNotFound) {
		return nil, huma.Error500InternalServerError("failed to locate schedule file", err)
	}

	// No file on disk; a YAML-sourced DB mirror keeps the document.
	sched, err := h.schedules.GetByChannelID(ctx, ch.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get schedule", err)
	}
	if sched == nil || sched.Document == "" {
		return nil, huma.Error404NotFound(fmt.Sprintf("channel %s has no YAML schedule", input.Number))
	}
	return &ExportScheduleOutput{ContentType: "application/yaml", Body: []byte(sched.Document)}, nil
}

// ImportScheduleInput carries a raw YAML document.
type ImportScheduleInput struct {
	Number      string `path:"number" doc:"Channel lineup number"`
	ContentType string `header:"Content-Type"`
	RawBody     []byte `contentType:"application/yaml"`
}

// ImportScheduleOutput reports the installed schedule.
type ImportScheduleOutput struct {
	Body struct {
		ChannelNumber string   `json:"channel_number"`
		Path          string   `json:"path"`
		Malformed     []string `json:"malformed,omitempty" doc:"Paths of rejected schedule entries"`
	}
}

// ImportYAML validates a YAML schedule and installs it for a channel.
// This is the one surface where a YAML error is a client error: everywhere
// else a broken file falls back to the DB schedule.
func (h *ScheduleHandler) ImportYAML(ctx context.Context, input *ImportScheduleInput) (*ImportScheduleOutput, error) {
	ch, herr := h.channelByNumber(ctx, input.Number)
	if herr != nil {
		return nil, herr
	}

	parsed, err := schedule.Parse(input.RawBody)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid schedule YAML", err)
	}

	if err := os.MkdirAll(h.cfg.Playout.SchedulesDir, 0o755); err != nil {
		return nil, huma.Error500InternalServerError("failed to create schedules directory", err)
	}
	path := filepath.Join(h.cfg.Playout.SchedulesDir, ch.Number+".yml")
	if err := os.WriteFile(path, input.RawBody, 0o644); err != nil {
		return nil, huma.Error500InternalServerError("failed to write schedule file", err)
	}

	if err := h.mirrorToDB(ctx, ch, path, string(input.RawBody)); err != nil {
		h.logger.Warn("mirroring YAML schedule to database",
			slog.String("channel", ch.Number),
			slog.String("error", err.Error()),
		)
	}

	h.logger.Info("schedule imported",
		slog.String("channel", ch.Number),
		slog.String("path", path),
		slog.Int("malformed", len(parsed.Malformed)),
	)

	resp := &ImportScheduleOutput{}
	resp.Body.ChannelNumber = ch.Number
	resp.Body.Path = path
	for _, m := range parsed.Malformed {
		resp.Body.Malformed = append(resp.Body.Malformed, m.Path)
	}
	return resp, nil
}

func (h *ScheduleHandler) mirrorToDB(ctx context.Context, ch *models.Channel, path, document string) error {
	existing, err := h.schedules.GetByChannelID(ctx, ch.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return h.schedules.Create(ctx, &models.Schedule{
			ChannelID:    ch.ID,
			Name:         ch.Name,
			IsYAMLSource: true,
			SourcePath:   path,
			Document:     document,
		})
	}
	existing.IsYAMLSource = true
	existing.SourcePath = path
	existing.Document = document
	return h.schedules.Update(ctx, existing, true)
}

// Delete removes a channel's schedule, both DB rows and the YAML file.
func (h *ScheduleHandler) Delete(ctx context.Context, input *ScheduleInput) (*struct{}, error) {
	ch, herr := h.channelByNumber(ctx, input.Number)
	if herr != nil {
		return nil, herr
	}

	sched, err := h.schedules.GetByChannelID(ctx, ch.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get schedule", err)
	}
	if sched != nil {
		if err := h.schedules.Delete(ctx, sched.ID); err != nil {
			return nil, huma.Error500InternalServerError("failed to delete schedule", err)
		}
	}

	if path, ferr := schedule.FindScheduleFile(h.cfg.Playout.SchedulesDir, ch.Number); ferr == nil {
		if err := os.Remove(path); err != nil {
			return nil, huma.Error500InternalServerError("failed to remove schedule file", err)
		}
	} else if sched == nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("channel %s has no schedule", input.Number))
	}

	return &struct{}{}, nil
}
