package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tgrayson/streamtv/internal/schedule"
)

var validateCmd = &cobra.Command{
	Use:   "validate [dir]",
	Short: "Validate schedule YAML files",
	Long: `Validate every schedule YAML file in a directory.

Each {number}.yml file is parsed with the same parser the server uses,
so a clean run here means the server will accept the files. Without an
argument the configured playout.schedules_dir is checked.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	dir := ""
	if len(args) > 0 {
		dir = args[0]
	} else {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		dir = cfg.Playout.SchedulesDir
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading schedules directory: %w", err)
	}

	checked := 0
	failed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".yml" && ext != ".yaml" {
			continue
		}

		checked++
		path := filepath.Join(dir, name)
		if _, err := schedule.ParseFile(path); err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "FAIL  %s: %v\n", name, err)
			continue
		}
		fmt.Printf("OK    %s\n", name)
	}

	if checked == 0 {
		fmt.Printf("no schedule files found in %s\n", dir)
		return nil
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d schedule files failed validation", failed, checked)
	}
	fmt.Printf("%d schedule files valid\n", checked)
	return nil
}
