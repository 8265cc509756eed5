// Package config provides configuration management for streamtv using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort          = 8411
	defaultServerTimeout       = 30 * time.Second
	defaultShutdownTimeout     = 15 * time.Second
	defaultMaxOpenConns        = 25
	defaultMaxIdleConns        = 10
	defaultConnMaxIdleTime     = 30 * time.Minute
	defaultTunerCount          = 4
	defaultBuildDays           = 1
	defaultMaxItems            = 1000
	defaultMaxConcurrentFFmpeg = 12
	defaultPositionInterval    = 30 * time.Minute
	defaultResolverTTL         = 15 * time.Minute
	defaultMaxLogoSizeBytes    = 5 * 1024 * 1024
)

// Config holds all configuration for the application.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Security   SecurityConfig   `mapstructure:"security"`
	HDHomeRun  HDHomeRunConfig  `mapstructure:"hdhomerun"`
	Playout    PlayoutConfig    `mapstructure:"playout"`
	FFmpeg     FFmpegConfig     `mapstructure:"ffmpeg"`
	ArchiveOrg ArchiveOrgConfig `mapstructure:"archive_org"`
	YouTube    YouTubeConfig    `mapstructure:"youtube"`
	Plex       PlexConfig       `mapstructure:"plex"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Backup     BackupConfig     `mapstructure:"backup"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	BaseURL         string        `mapstructure:"base_url"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// SecurityConfig holds access control configuration.
type SecurityConfig struct {
	// APIKeyRequired gates the management API behind X-API-Key.
	APIKeyRequired bool   `mapstructure:"api_key_required"`
	APIKey         string `mapstructure:"api_key"`
	// AccessToken, when set, must match ?access_token= on every IPTV and
	// HDHomeRun surface. Empty means public (Plex DVR expects that).
	AccessToken string `mapstructure:"access_token"`
}

// HDHomeRunConfig holds HDHomeRun tuner emulation configuration.
type HDHomeRunConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	DeviceID     string `mapstructure:"device_id"`
	FriendlyName string `mapstructure:"friendly_name"`
	TunerCount   int    `mapstructure:"tuner_count"`
	EnableSSDP   bool   `mapstructure:"enable_ssdp"`
}

// PlayoutConfig holds channel playout and EPG configuration.
type PlayoutConfig struct {
	// BuildDays is the EPG horizon in days starting from now.
	BuildDays int `mapstructure:"build_days"`
	// SchedulesDir is the root holding per-channel YAML files
	// (schedules/{number}.yml).
	SchedulesDir string `mapstructure:"schedules_dir"`
	// MaxItems bounds a single schedule expansion.
	MaxItems int `mapstructure:"max_items"`
	// MaxConcurrentFFmpeg caps total child processes: advancers,
	// on-demand clients, and pre-warmers together.
	MaxConcurrentFFmpeg  int           `mapstructure:"max_concurrent_ffmpeg"`
	PositionSaveInterval time.Duration `mapstructure:"position_save_interval"`
	ResolverCacheTTL     time.Duration `mapstructure:"resolver_cache_ttl"`
	// ContentFilters maps a channel number to a path substring its items
	// must contain; non-matching items are skipped.
	ContentFilters map[string]string `mapstructure:"content_filters"`
}

// FFmpegConfig holds FFmpeg binary and command-building configuration.
type FFmpegConfig struct {
	FFmpegPath  string `mapstructure:"ffmpeg_path"`
	FFprobePath string `mapstructure:"ffprobe_path"`
	LogLevel    string `mapstructure:"log_level"`
	Threads     int    `mapstructure:"threads"`
	HWAccel     string `mapstructure:"hwaccel"`
	HWAccelDev  string `mapstructure:"hwaccel_device"`

	// Per-source overrides; empty means use the global HWAccel.
	YouTubeHWAccel    string `mapstructure:"youtube_hwaccel"`
	ArchiveOrgHWAccel string `mapstructure:"archive_org_hwaccel"`
	PBSHWAccel        string `mapstructure:"pbs_hwaccel"`
	PlexHWAccel       string `mapstructure:"plex_hwaccel"`

	YouTubeVideoEncoder    string `mapstructure:"youtube_video_encoder"`
	ArchiveOrgVideoEncoder string `mapstructure:"archive_org_video_encoder"`
	PBSVideoEncoder        string `mapstructure:"pbs_video_encoder"`
	PlexVideoEncoder       string `mapstructure:"plex_video_encoder"`

	ExtraFlags string `mapstructure:"extra_flags"`
}

// SourceHWAccel returns the hwaccel for a source tag, falling back to the
// global setting.
func (c *FFmpegConfig) SourceHWAccel(source string) string {
	var v string
	switch source {
	case "youtube":
		v = c.YouTubeHWAccel
	case "archive_org":
		v = c.ArchiveOrgHWAccel
	case "pbs":
		v = c.PBSHWAccel
	case "plex":
		v = c.PlexHWAccel
	}
	if v == "" {
		return c.HWAccel
	}
	return v
}

// SourceVideoEncoder returns the hardware video encoder override for a
// source tag, or empty when the default encoder selection applies.
func (c *FFmpegConfig) SourceVideoEncoder(source string) string {
	switch source {
	case "youtube":
		return c.YouTubeVideoEncoder
	case "archive_org":
		return c.ArchiveOrgVideoEncoder
	case "pbs":
		return c.PBSVideoEncoder
	case "plex":
		return c.PlexVideoEncoder
	}
	return ""
}

// ArchiveOrgConfig holds Archive.org session configuration.
type ArchiveOrgConfig struct {
	UseAuthentication bool   `mapstructure:"use_authentication"`
	CookiesFile       string `mapstructure:"cookies_file"`
}

// YouTubeConfig holds YouTube resolution configuration.
type YouTubeConfig struct {
	CookiesFile string `mapstructure:"cookies_file"`
	YtdlpPath   string `mapstructure:"ytdlp_path"`
}

// PlexConfig holds Plex media server configuration.
type PlexConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	BaseURL   string `mapstructure:"base_url"`
	Token     string `mapstructure:"token"`
	UseForEPG bool   `mapstructure:"use_for_epg"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// StorageConfig holds file storage configuration.
type StorageConfig struct {
	BaseDir string `mapstructure:"base_dir"`
	LogoDir string `mapstructure:"logo_dir"`
	TempDir string `mapstructure:"temp_dir"`
	// MaxLogoSize is the maximum allowed size for logo files.
	// Supports human-readable values like "5MB" or raw byte counts.
	MaxLogoSize ByteSize `mapstructure:"max_logo_size"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// BackupConfig holds backup configuration.
type BackupConfig struct {
	Directory   string `mapstructure:"directory"` // empty = {storage.base_dir}/backups
	Enabled     bool   `mapstructure:"enabled"`
	Cron        string `mapstructure:"cron"`        // 6-field cron expression
	Retention   int    `mapstructure:"retention"`   // number of backups to keep
	Compression string `mapstructure:"compression"` // gzip, xz
}

// SchedulerConfig holds background job scheduler configuration.
type SchedulerConfig struct {
	EPGRebuildCron    string `mapstructure:"epg_rebuild_cron"`
	PositionSweepCron string `mapstructure:"position_sweep_cron"`
	ScheduleReload    bool   `mapstructure:"schedule_reload"` // fsnotify watcher on schedules_dir
	Workers           int    `mapstructure:"workers"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with STREAMTV_ and use underscores
// for nesting. Example: STREAMTV_SERVER_PORT=8411.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/streamtv")
		v.AddConfigPath("$HOME/.streamtv")
	}

	v.SetEnvPrefix("STREAMTV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.base_url", "")
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	// Streaming responses are open-ended; the write timeout must not
	// reap a .ts client, so it defaults to 0 (disabled).
	v.SetDefault("server.write_timeout", time.Duration(0))
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	// Security defaults
	v.SetDefault("security.api_key_required", false)
	v.SetDefault("security.api_key", "")
	v.SetDefault("security.access_token", "")

	// HDHomeRun defaults
	v.SetDefault("hdhomerun.enabled", true)
	v.SetDefault("hdhomerun.device_id", "STREAMTV1")
	v.SetDefault("hdhomerun.friendly_name", "StreamTV")
	v.SetDefault("hdhomerun.tuner_count", defaultTunerCount)
	v.SetDefault("hdhomerun.enable_ssdp", false)

	// Playout defaults
	v.SetDefault("playout.build_days", defaultBuildDays)
	v.SetDefault("playout.schedules_dir", "./schedules")
	v.SetDefault("playout.max_items", defaultMaxItems)
	v.SetDefault("playout.max_concurrent_ffmpeg", defaultMaxConcurrentFFmpeg)
	v.SetDefault("playout.position_save_interval", defaultPositionInterval)
	v.SetDefault("playout.resolver_cache_ttl", defaultResolverTTL)
	v.SetDefault("playout.content_filters", map[string]string{})

	// FFmpeg defaults
	v.SetDefault("ffmpeg.ffmpeg_path", "")
	v.SetDefault("ffmpeg.ffprobe_path", "")
	v.SetDefault("ffmpeg.log_level", "error")
	v.SetDefault("ffmpeg.threads", 0)
	v.SetDefault("ffmpeg.hwaccel", "")
	v.SetDefault("ffmpeg.hwaccel_device", "")
	v.SetDefault("ffmpeg.extra_flags", "")

	// Archive.org defaults
	v.SetDefault("archive_org.use_authentication", false)
	v.SetDefault("archive_org.cookies_file", "")

	// YouTube defaults
	v.SetDefault("youtube.cookies_file", "")
	v.SetDefault("youtube.ytdlp_path", "")

	// Plex defaults
	v.SetDefault("plex.enabled", false)
	v.SetDefault("plex.base_url", "")
	v.SetDefault("plex.token", "")
	v.SetDefault("plex.use_for_epg", false)

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "streamtv.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	// Storage defaults
	v.SetDefault("storage.base_dir", "./data")
	v.SetDefault("storage.logo_dir", "channel_icons")
	v.SetDefault("storage.temp_dir", "temp")
	v.SetDefault("storage.max_logo_size", defaultMaxLogoSizeBytes)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Backup defaults
	v.SetDefault("backup.directory", "")
	v.SetDefault("backup.enabled", true)
	v.SetDefault("backup.cron", "0 0 2 * * *") // daily at 2 AM (6-field cron)
	v.SetDefault("backup.retention", 7)
	v.SetDefault("backup.compression", "gzip")

	// Scheduler defaults
	v.SetDefault("scheduler.epg_rebuild_cron", "0 0 4 * * *")
	v.SetDefault("scheduler.position_sweep_cron", "0 30 4 * * *")
	v.SetDefault("scheduler.schedule_reload", true)
	v.SetDefault("scheduler.workers", 2)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.HDHomeRun.TunerCount < 1 {
		return fmt.Errorf("hdhomerun.tuner_count must be at least 1")
	}
	if c.Playout.BuildDays < 1 {
		return fmt.Errorf("playout.build_days must be at least 1")
	}
	if c.Playout.MaxItems < 1 {
		return fmt.Errorf("playout.max_items must be at least 1")
	}
	if c.Playout.MaxConcurrentFFmpeg < 1 {
		return fmt.Errorf("playout.max_concurrent_ffmpeg must be at least 1")
	}

	if c.Security.APIKeyRequired && c.Security.APIKey == "" {
		return fmt.Errorf("security.api_key is required when security.api_key_required is set")
	}

	validCompression := map[string]bool{"gzip": true, "xz": true}
	if !validCompression[c.Backup.Compression] {
		return fmt.Errorf("backup.compression must be one of: gzip, xz")
	}

	if c.Plex.Enabled && c.Plex.BaseURL == "" {
		return fmt.Errorf("plex.base_url is required when plex.enabled is set")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ResolveBaseURL returns the configured base URL, or one derived from the
// bind address when unset. Handlers prefer the request Host header; this
// is the fallback for generated artifacts (M3U, XMLTV) built offline.
func (c *ServerConfig) ResolveBaseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	host := c.Host
	if host == "0.0.0.0" || host == "" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, c.Port)
}

// LogoPath returns the full path to the channel icon directory.
func (c *StorageConfig) LogoPath() string {
	return fmt.Sprintf("%s/%s", c.BaseDir, c.LogoDir)
}

// TempPath returns the full path to the temp directory.
func (c *StorageConfig) TempPath() string {
	return fmt.Sprintf("%s/%s", c.BaseDir, c.TempDir)
}

// BackupPath returns the backup directory path.
// If Directory is set, returns it directly; otherwise {BaseDir}/backups.
func (c *BackupConfig) BackupPath(storageBaseDir string) string {
	if c.Directory != "" {
		return c.Directory
	}
	return fmt.Sprintf("%s/backups", storageBaseDir)
}
