package service

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/ulikunitz/xz"
	"gorm.io/gorm"

	"github.com/tgrayson/streamtv/internal/config"
)

// backupFilePattern matches streamtv-backup-{timestamp}.tar.{gz,xz}.
var backupFilePattern = regexp.MustCompile(
	`^streamtv-backup-(\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2}\.\d{3})\.tar\.(gz|xz)$`)

const backupTimestampLayout = "2006-01-02T15-04-05.000"

// minBackupDiskSpace is the free space required before writing (100MB).
const minBackupDiskSpace = 100 * 1024 * 1024

// BackupInfo describes one archive in the backup directory.
type BackupInfo struct {
	Filename  string    `json:"filename"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// BackupService writes tar archives holding a consistent database snapshot
// and the schedules directory, and prunes old ones per the retention count.
type BackupService struct {
	db           *gorm.DB
	cfg          config.BackupConfig
	backupDir    string
	schedulesDir string
	logger       *slog.Logger

	now func() time.Time
}

// NewBackupService creates a backup service. The backup directory defaults
// to {storage.base_dir}/backups.
func NewBackupService(db *gorm.DB, cfg config.BackupConfig, storageBaseDir, schedulesDir string) *BackupService {
	return &BackupService{
		db:           db,
		cfg:          cfg,
		backupDir:    cfg.BackupPath(storageBaseDir),
		schedulesDir: schedulesDir,
		logger:       slog.Default(),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithLogger sets the logger for the service.
func (s *BackupService) WithLogger(logger *slog.Logger) *BackupService {
	s.logger = logger
	return s
}

// BackupDirectory returns the directory archives are written to.
func (s *BackupService) BackupDirectory() string {
	return s.backupDir
}

// CreateBackup writes a new archive and returns its path. The database
// snapshot comes from VACUUM INTO so it is consistent even while
// broadcasters keep writing positions.
func (s *BackupService) CreateBackup(ctx context.Context) (string, error) {
	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return "", fmt.Errorf("creating backup directory: %w", err)
	}
	if err := s.checkDiskSpace(); err != nil {
		return "", err
	}

	ext := "gz"
	if strings.EqualFold(s.cfg.Compression, "xz") {
		ext = "xz"
	}

	timestamp := s.now()
	baseName := fmt.Sprintf("streamtv-backup-%s", timestamp.Format(backupTimestampLayout))
	dumpPath := filepath.Join(s.backupDir, baseName+".db")
	finalPath := filepath.Join(s.backupDir, fmt.Sprintf("%s.tar.%s", baseName, ext))

	// VACUUM INTO refuses to overwrite.
	os.Remove(dumpPath)
	if err := s.db.WithContext(ctx).Exec("VACUUM INTO ?", dumpPath).Error; err != nil {
		return "", fmt.Errorf("snapshotting database: %w", err)
	}
	defer os.Remove(dumpPath)

	if err := s.writeArchive(finalPath, ext, dumpPath); err != nil {
		os.Remove(finalPath)
		return "", err
	}

	info, err := os.Stat(finalPath)
	if err != nil {
		return "", fmt.Errorf("stat backup archive: %w", err)
	}

	s.logger.Info("backup created",
		slog.String("filename", filepath.Base(finalPath)),
		slog.Int64("size", info.Size()))
	return finalPath, nil
}

// writeArchive builds the tar into a temp file, then renames it into
// place so a crashed backup never leaves a half-written archive behind.
func (s *BackupService) writeArchive(finalPath, ext, dumpPath string) error {
	tmp, err := os.CreateTemp(s.backupDir, ".backup-*.tar."+ext)
	if err != nil {
		return fmt.Errorf("creating temp archive: %w", err)
	}
	tmpPath := tmp.Name()

	if err := s.writeTar(tmp, ext, dumpPath); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp archive: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("publishing archive: %w", err)
	}
	return nil
}

func (s *BackupService) writeTar(w io.Writer, ext, dumpPath string) error {
	var (
		comp    io.WriteCloser
		compErr error
	)
	switch ext {
	case "xz":
		comp, compErr = xz.NewWriter(w)
	default:
		comp = gzip.NewWriter(w)
	}
	if compErr != nil {
		return fmt.Errorf("creating %s writer: %w", ext, compErr)
	}

	tw := tar.NewWriter(comp)

	if err := s.addFile(tw, dumpPath, "streamtv.db"); err != nil {
		return err
	}
	if err := s.addSchedules(tw); err != nil {
		return err
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("closing tar: %w", err)
	}
	if err := comp.Close(); err != nil {
		return fmt.Errorf("closing %s writer: %w", ext, err)
	}
	return nil
}

// addSchedules adds every YAML file in the schedules directory under
// schedules/. A missing directory is fine; the archive just holds the
// database.
func (s *BackupService) addSchedules(tw *tar.Writer) error {
	entries, err := os.ReadDir(s.schedulesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading schedules directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yml" && ext != ".yaml" {
			continue
		}
		src := filepath.Join(s.schedulesDir, entry.Name())
		if err := s.addFile(tw, src, "schedules/"+entry.Name()); err != nil {
			return err
		}
	}
	return nil
}

func (s *BackupService) addFile(tw *tar.Writer, src, name string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	hdr := &tar.Header{
		Name:    name,
		Mode:    0o644,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("writing tar header for %s: %w", name, err)
	}
	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("writing %s into archive: %w", name, err)
	}
	return nil
}

// ListBackups returns all archives sorted newest first. Files that do not
// match the backup naming scheme are ignored.
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var backups []BackupInfo
	for _, entry := range entries {
		match := backupFilePattern.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		created, err := time.Parse(backupTimestampLayout, match[1])
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, BackupInfo{
			Filename:  entry.Name(),
			Path:      filepath.Join(s.backupDir, entry.Name()),
			Size:      info.Size(),
			CreatedAt: created.UTC(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}

// Prune removes archives beyond the retention count, oldest first.
// Retention <= 0 keeps everything.
func (s *BackupService) Prune(ctx context.Context) (int, error) {
	retention := s.cfg.Retention
	if retention <= 0 {
		return 0, nil
	}

	backups, err := s.ListBackups(ctx)
	if err != nil {
		return 0, err
	}
	if len(backups) <= retention {
		return 0, nil
	}

	deleted := 0
	for _, backup := range backups[retention:] {
		if err := os.Remove(backup.Path); err != nil {
			s.logger.Warn("deleting old backup failed",
				slog.String("filename", backup.Filename),
				slog.Any("error", err))
			continue
		}
		deleted++
	}

	if deleted > 0 {
		s.logger.Info("pruned old backups", slog.Int("deleted", deleted))
	}
	return deleted, nil
}

// checkDiskSpace verifies sufficient free space. Best-effort: a failed
// statfs only logs.
func (s *BackupService) checkDiskSpace() error {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(s.backupDir, &stat); err != nil {
		s.logger.Warn("unable to check disk space", slog.Any("error", err))
		return nil
	}

	available := stat.Bavail * uint64(stat.Bsize)
	if available < minBackupDiskSpace {
		return fmt.Errorf("insufficient disk space for backup: %d bytes available, %d required",
			available, minBackupDiskSpace)
	}
	return nil
}
