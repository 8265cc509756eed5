package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tgrayson/streamtv/internal/database"
	"github.com/tgrayson/streamtv/internal/database/migrations"
	"github.com/tgrayson/streamtv/internal/repository"
	"github.com/tgrayson/streamtv/internal/service"
)

var (
	importStartNumber int
	importOverwrite   bool
	importEnable      bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import channels from external sources",
}

var importM3UCmd = &cobra.Command{
	Use:   "m3u <file>",
	Short: "Import channels from an M3U playlist",
	Long: `Create channels from an M3U playlist file.

Gzip, bzip2, and xz compressed playlists are detected automatically.
Numbers come from tvg-chno attributes where present; entries without
one are numbered sequentially starting at --start-number. Imported
channels start disabled until a schedule is attached, unless --enable
is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runImportM3U,
}

func init() {
	importM3UCmd.Flags().IntVar(&importStartNumber, "start-number", 100, "first number for entries without tvg-chno")
	importM3UCmd.Flags().BoolVar(&importOverwrite, "overwrite", false, "update channels whose number already exists")
	importM3UCmd.Flags().BoolVar(&importEnable, "enable", false, "create imported channels enabled")
	importCmd.AddCommand(importM3UCmd)
	rootCmd.AddCommand(importCmd)
}

func runImportM3U(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	setupLogging(cfg)

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening playlist: %w", err)
	}
	defer f.Close()

	ctx := context.Background()

	db, err := database.New(cfg.Database, nil, nil)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	migrator := migrations.NewMigrator(db.DB, nil)
	migrator.RegisterAll(migrations.AllMigrations())
	if err := migrator.Up(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	svc := service.NewImportService(repository.NewChannelRepository(db.DB))
	result, err := svc.ImportM3U(ctx, f, service.ImportOptions{
		StartNumber: importStartNumber,
		Overwrite:   importOverwrite,
		Enable:      importEnable,
	})
	if err != nil {
		return fmt.Errorf("importing playlist: %w", err)
	}

	fmt.Printf("created %d, updated %d, skipped %d channels\n",
		result.Created, result.Updated, result.Skipped)
	for _, msg := range result.Errors {
		fmt.Fprintf(os.Stderr, "warning: %s\n", msg)
	}
	return nil
}
