package service

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tgrayson/streamtv/internal/config"
	"github.com/tgrayson/streamtv/internal/models"
)

func backupFixture(t *testing.T, cfg config.BackupConfig) (*BackupService, string) {
	t.Helper()

	baseDir := t.TempDir()
	schedulesDir := filepath.Join(baseDir, "schedules")
	require.NoError(t, os.MkdirAll(schedulesDir, 0o755))

	db, err := gorm.Open(sqlite.Open(filepath.Join(baseDir, "streamtv.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Channel{}))

	return NewBackupService(db, cfg, baseDir, schedulesDir), schedulesDir
}

func archiveNames(t *testing.T, path string) []string {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var r io.Reader
	switch filepath.Ext(path) {
	case ".xz":
		r, err = xz.NewReader(f)
		require.NoError(t, err)
	default:
		gz, err := gzip.NewReader(f)
		require.NoError(t, err)
		defer gz.Close()
		r = gz
	}

	var names []string
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, hdr.Name)
	}
	return names
}

func TestCreateBackupGzip(t *testing.T) {
	svc, schedulesDir := backupFixture(t, config.BackupConfig{Compression: "gzip"})
	require.NoError(t, os.WriteFile(filepath.Join(schedulesDir, "42.yml"), []byte("programming: []\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(schedulesDir, "notes.txt"), []byte("ignored"), 0o644))

	path, err := svc.CreateBackup(context.Background())
	require.NoError(t, err)
	assert.Regexp(t, `streamtv-backup-.*\.tar\.gz$`, filepath.Base(path))

	names := archiveNames(t, path)
	assert.Contains(t, names, "streamtv.db")
	assert.Contains(t, names, "schedules/42.yml")
	assert.NotContains(t, names, "schedules/notes.txt")

	// The temp dump does not linger.
	entries, err := os.ReadDir(svc.BackupDirectory())
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotEqual(t, ".db", filepath.Ext(entry.Name()))
	}
}

func TestCreateBackupXZ(t *testing.T) {
	svc, _ := backupFixture(t, config.BackupConfig{Compression: "xz"})

	path, err := svc.CreateBackup(context.Background())
	require.NoError(t, err)
	assert.Regexp(t, `\.tar\.xz$`, path)

	assert.Contains(t, archiveNames(t, path), "streamtv.db")
}

func TestCreateBackupMissingSchedulesDir(t *testing.T) {
	svc, schedulesDir := backupFixture(t, config.BackupConfig{})
	require.NoError(t, os.RemoveAll(schedulesDir))

	path, err := svc.CreateBackup(context.Background())
	require.NoError(t, err, "no schedules dir still backs up the database")
	assert.Equal(t, []string{"streamtv.db"}, archiveNames(t, path))
}

func TestListBackupsSortedNewestFirst(t *testing.T) {
	svc, _ := backupFixture(t, config.BackupConfig{})

	base := time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		stamp := base.Add(time.Duration(i) * time.Hour)
		svc.now = func() time.Time { return stamp }
		_, err := svc.CreateBackup(context.Background())
		require.NoError(t, err)
	}

	backups, err := svc.ListBackups(context.Background())
	require.NoError(t, err)
	require.Len(t, backups, 3)
	assert.True(t, backups[0].CreatedAt.After(backups[1].CreatedAt))
	assert.True(t, backups[1].CreatedAt.After(backups[2].CreatedAt))
	assert.Positive(t, backups[0].Size)
}

func TestPruneKeepsNewest(t *testing.T) {
	svc, _ := backupFixture(t, config.BackupConfig{Retention: 2})

	base := time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		stamp := base.Add(time.Duration(i) * time.Hour)
		svc.now = func() time.Time { return stamp }
		_, err := svc.CreateBackup(context.Background())
		require.NoError(t, err)
	}

	deleted, err := svc.Prune(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	remaining, err := svc.ListBackups(context.Background())
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	assert.Equal(t, base.Add(4*time.Hour), remaining[0].CreatedAt)
	assert.Equal(t, base.Add(3*time.Hour), remaining[1].CreatedAt)
}

func TestPruneDisabledByZeroRetention(t *testing.T) {
	svc, _ := backupFixture(t, config.BackupConfig{Retention: 0})

	_, err := svc.CreateBackup(context.Background())
	require.NoError(t, err)

	deleted, err := svc.Prune(context.Background())
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
