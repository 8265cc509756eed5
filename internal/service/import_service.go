package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/tgrayson/streamtv/internal/models"
	"github.com/tgrayson/streamtv/internal/repository"
	"github.com/tgrayson/streamtv/pkg/m3u"
)

// ImportService creates channels from an existing M3U playlist, so a
// lineup built elsewhere can be carried over in one step.
type ImportService struct {
	channels repository.ChannelRepository
	logger   *slog.Logger
}

// NewImportService creates a new import service.
func NewImportService(channels repository.ChannelRepository) *ImportService {
	return &ImportService{
		channels: channels,
		logger:   slog.Default(),
	}
}

// WithLogger sets the logger for the service.
func (s *ImportService) WithLogger(logger *slog.Logger) *ImportService {
	s.logger = logger
	return s
}

// ImportOptions configures playlist import behavior.
type ImportOptions struct {
	// StartNumber is where numbering begins for entries without a
	// tvg-chno attribute. Defaults to 100.
	StartNumber int

	// Overwrite updates name, group, and logo of channels whose number
	// already exists. When false, conflicts are skipped.
	Overwrite bool

	// Enable marks imported channels enabled. Off by default: an
	// imported channel has no schedule yet, and an enabled channel
	// without one would sit dark in every client's lineup.
	Enable bool
}

// ImportResult summarizes a playlist import.
type ImportResult struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// ImportM3U parses r as an M3U playlist, transparently decompressing
// gzip, bzip2, and xz, and creates one channel per entry.
func (s *ImportService) ImportM3U(ctx context.Context, r io.Reader, opts ImportOptions) (*ImportResult, error) {
	if opts.StartNumber <= 0 {
		opts.StartNumber = 100
	}

	result := &ImportResult{}
	nextNumber := opts.StartNumber

	parser := &m3u.Parser{
		OnEntry: func(entry *m3u.Entry) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			number := strconv.Itoa(entry.ChannelNumber)
			if entry.ChannelNumber <= 0 {
				number, nextNumber = s.nextFreeNumber(ctx, nextNumber)
			}
			if err := s.importEntry(ctx, number, entry, opts, result); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("channel %s: %v", number, err))
			}
			return nil
		},
		OnError: func(lineNum int, err error) {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", lineNum, err))
		},
	}

	if err := parser.ParseCompressed(r); err != nil {
		return nil, fmt.Errorf("parsing playlist: %w", err)
	}

	s.logger.Info("playlist import finished",
		"created", result.Created,
		"updated", result.Updated,
		"skipped", result.Skipped,
		"errors", len(result.Errors))
	return result, nil
}

func (s *ImportService) importEntry(ctx context.Context, number string, entry *m3u.Entry, opts ImportOptions, result *ImportResult) error {
	name := entry.TvgName
	if name == "" {
		name = entry.Title
	}
	if name == "" {
		name = "Channel " + number
	}

	existing, err := s.channels.GetByNumber(ctx, number)
	if err != nil {
		return fmt.Errorf("looking up channel: %w", err)
	}

	if existing != nil {
		if !opts.Overwrite {
			result.Skipped++
			return nil
		}
		existing.Name = name
		existing.Group = entry.GroupTitle
		if entry.TvgLogo != "" {
			existing.LogoPath = entry.TvgLogo
		}
		if err := s.channels.Update(ctx, existing); err != nil {
			return fmt.Errorf("updating channel: %w", err)
		}
		result.Updated++
		return nil
	}

	ch := &models.Channel{
		Number:   number,
		Name:     name,
		Group:    entry.GroupTitle,
		LogoPath: entry.TvgLogo,
		Enabled:  models.BoolPtr(opts.Enable),
	}
	if err := s.channels.Create(ctx, ch); err != nil {
		return fmt.Errorf("creating channel: %w", err)
	}
	result.Created++
	return nil
}

// nextFreeNumber walks forward from candidate until a number is unused,
// returning it and the next candidate to try after it.
func (s *ImportService) nextFreeNumber(ctx context.Context, candidate int) (string, int) {
	for {
		number := strconv.Itoa(candidate)
		candidate++
		existing, err := s.channels.GetByNumber(ctx, number)
		if err != nil || existing == nil {
			return number, candidate
		}
	}
}
