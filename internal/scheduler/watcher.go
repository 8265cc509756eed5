package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tgrayson/streamtv/internal/models"
	"github.com/tgrayson/streamtv/internal/repository"
)

// defaultDebounce coalesces the write bursts editors and rsync produce
// for a single file save.
const defaultDebounce = 2 * time.Second

// JobEnqueuer creates one-off jobs, deduplicating pending ones.
type JobEnqueuer interface {
	ScheduleImmediate(ctx context.Context, jobType models.JobType, targetID models.ULID, targetName string) (*models.Job, error)
}

// ScheduleWatcher watches the schedules directory and enqueues a reload
// job whenever a channel's YAML file changes. Files are named
// {number}.yml, so the channel is recovered from the path.
type ScheduleWatcher struct {
	dir      string
	channels repository.ChannelRepository
	jobs     JobEnqueuer
	logger   *slog.Logger
	debounce time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	timers  map[string]*time.Timer
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewScheduleWatcher creates a watcher for the given schedules directory.
func NewScheduleWatcher(dir string, channels repository.ChannelRepository, jobs JobEnqueuer) *ScheduleWatcher {
	return &ScheduleWatcher{
		dir:      dir,
		channels: channels,
		jobs:     jobs,
		logger:   slog.Default(),
		debounce: defaultDebounce,
		timers:   make(map[string]*time.Timer),
	}
}

// WithLogger sets a custom logger.
func (w *ScheduleWatcher) WithLogger(logger *slog.Logger) *ScheduleWatcher {
	w.logger = logger
	return w
}

// WithDebounce overrides the per-file debounce window.
func (w *ScheduleWatcher) WithDebounce(d time.Duration) *ScheduleWatcher {
	if d > 0 {
		w.debounce = d
	}
	return w
}

// Start begins watching. The directory must exist.
func (w *ScheduleWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watcher != nil {
		return fmt.Errorf("schedule watcher already started")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}

	w.watcher = watcher
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.loop()

	w.logger.Info("schedule watcher started", slog.String("dir", w.dir))
	return nil
}

// Stop stops watching and cancels pending debounce timers.
func (w *ScheduleWatcher) Stop() {
	w.mu.Lock()
	if w.watcher == nil {
		w.mu.Unlock()
		return
	}
	w.cancel()
	w.watcher.Close()
	for path, timer := range w.timers {
		timer.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()

	w.wg.Wait()

	w.mu.Lock()
	w.watcher = nil
	w.mu.Unlock()

	w.logger.Info("schedule watcher stopped")
}

func (w *ScheduleWatcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("schedule watcher error", slog.Any("error", err))
		}
	}
}

// handleEvent debounces per file, then enqueues the reload.
func (w *ScheduleWatcher) handleEvent(event fsnotify.Event) {
	if !event.Op.Has(fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename) {
		return
	}
	number := channelNumberFromPath(event.Name)
	if number == "" {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		return
	}
	if timer, ok := w.timers[event.Name]; ok {
		timer.Stop()
	}
	path := event.Name
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		w.enqueueReload(number)
	})
}

// enqueueReload creates a schedule_reload job for the channel. Pending
// duplicates are returned as-is, so rapid successive edits collapse into
// one reload.
func (w *ScheduleWatcher) enqueueReload(number string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ch, err := w.channels.GetByNumber(ctx, number)
	if err != nil {
		w.logger.Error("loading channel for schedule reload",
			slog.String("channel", number), slog.Any("error", err))
		return
	}
	if ch == nil {
		w.logger.Debug("schedule file for unknown channel ignored",
			slog.String("channel", number))
		return
	}

	job, err := w.jobs.ScheduleImmediate(ctx, models.JobTypeScheduleReload, ch.ID, ch.Number)
	if err != nil {
		w.logger.Error("enqueueing schedule reload",
			slog.String("channel", number), slog.Any("error", err))
		return
	}

	w.logger.Info("schedule change detected",
		slog.String("channel", number),
		slog.String("job_id", job.ID.String()))
}

// channelNumberFromPath maps {dir}/{number}.yml to the channel number.
// Non-YAML files and dotfiles (editor temp files) return "".
func channelNumberFromPath(path string) string {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return ""
	}
	ext := filepath.Ext(base)
	if ext != ".yml" && ext != ".yaml" {
		return ""
	}
	return strings.TrimSuffix(base, ext)
}
