package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tgrayson/streamtv/internal/config"
	"github.com/tgrayson/streamtv/internal/database"
	"github.com/tgrayson/streamtv/internal/service"
	"github.com/tgrayson/streamtv/pkg/format"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage database and schedule backups",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a backup archive now",
	Long: `Snapshot the database and schedules directory into a tar archive
under the backup directory, then prune old archives per the configured
retention count.`,
	RunE: runBackupCreate,
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backup archives, newest first",
	RunE:  runBackupList,
}

func init() {
	backupCmd.AddCommand(backupCreateCmd)
	backupCmd.AddCommand(backupListCmd)
	rootCmd.AddCommand(backupCmd)
}

func backupService() (*service.BackupService, *config.Config, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}
	setupLogging(cfg)

	db, err := database.New(cfg.Database, nil, nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening database: %w", err)
	}

	svc := service.NewBackupService(db.DB, cfg.Backup, cfg.Storage.BaseDir, cfg.Playout.SchedulesDir)
	return svc, cfg, func() { db.Close() }, nil
}

func runBackupCreate(cmd *cobra.Command, _ []string) error {
	svc, _, cleanup, err := backupService()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	path, err := svc.CreateBackup(ctx)
	if err != nil {
		return fmt.Errorf("creating backup: %w", err)
	}
	fmt.Printf("wrote %s\n", filepath.Base(path))

	deleted, err := svc.Prune(ctx)
	if err != nil {
		return fmt.Errorf("pruning backups: %w", err)
	}
	if deleted > 0 {
		fmt.Printf("pruned %d old %s\n", deleted, plural(deleted, "backup"))
	}
	return nil
}

func runBackupList(cmd *cobra.Command, _ []string) error {
	svc, cfg, cleanup, err := backupService()
	if err != nil {
		return err
	}
	defer cleanup()

	backups, err := svc.ListBackups(context.Background())
	if err != nil {
		return fmt.Errorf("listing backups: %w", err)
	}

	if cfg.Backup.Enabled && cfg.Backup.Cron != "" {
		fmt.Printf("schedule: %s, keeping %d backups\n",
			format.CronDescription(cfg.Backup.Cron), cfg.Backup.Retention)
	}

	if len(backups) == 0 {
		fmt.Println("no backups found")
		return nil
	}

	var total int64
	for _, b := range backups {
		total += b.Size
		fmt.Printf("%-44s %10s  %s\n", b.Filename, format.Bytes(b.Size), format.RelativeTime(b.CreatedAt))
	}
	fmt.Printf("\n%d %s, %s total\n", len(backups), plural(len(backups), "backup"), format.Bytes(total))
	return nil
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
