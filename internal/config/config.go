// Package config loads gimmie's settings from a .env file, GIMMIE_*
// environment variables and command-line flags, in increasing priority.
package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/erazemk/gimmie/internal/backup"
	"github.com/erazemk/gimmie/internal/list"
)

// ScheduleOff disables scheduled backups.
const ScheduleOff = "off"

// Config is the resolved runtime configuration.
type Config struct {
	DB          string // SQLite path or postgres:// DSN
	Addr        string
	LogPath     string
	Check       bool
	Password    string // initial family password; generated when empty
	CORSOrigins []string
	ReplaceMode list.ReplaceMode
	Backup      Backup
}

// Backup configures the scheduled snapshotter.
type Backup struct {
	Dir           string
	Prefix        string
	Schedule      string
	RetentionDays int
	S3            backup.S3Config
}

// Enabled reports whether scheduled backups should run.
func (b Backup) Enabled() bool {
	return b.Schedule != ScheduleOff
}

const usage = `Usage: gimmie [flags]

Flags:
  -d, -db <path|dsn>          SQLite path or postgres:// DSN (default: gimmie.sqlite3)
  -a, -addr <host:port>       listen address (default: :8080)
  -l, -log <path>             log file path (default: no file, stdout/stderr only)
  -check                      verify list positions and exit
  -replace-mode <mode>        what replace imports do with old items: archive or discard (default: archive)
  -backup-dir <path>          backup directory (default: backups)
  -backup-prefix <name>       backup file prefix (default: gimmie)
  -backup-schedule <cron>     backup schedule, or "off" (default: "0 2 * * *")
  -backup-retention <days>    days of backups to keep (default: 30)
  -backup-s3-bucket <name>    write backups to this S3 bucket instead of a directory
  -h, -help                   show this help and exit

Every flag can also be set with a GIMMIE_* environment variable or a .env file,
e.g. GIMMIE_DB, GIMMIE_BACKUP_SCHEDULE. Environment only:
  GIMMIE_PASSWORD, GIMMIE_CORS_ORIGINS, GIMMIE_BACKUP_S3_PREFIX,
  GIMMIE_BACKUP_S3_REGION, GIMMIE_BACKUP_S3_ENDPOINT, GIMMIE_BACKUP_S3_PATH_STYLE,
  GIMMIE_BACKUP_S3_ACCESS_KEY_ID, GIMMIE_BACKUP_S3_SECRET_ACCESS_KEY
`

// Load resolves the configuration for args (without the program name).
// It returns flag.ErrHelp when help was requested.
func Load(args []string, out io.Writer) (*Config, error) {
	// A missing .env file is fine.
	_ = godotenv.Load()

	retention, err := strconv.Atoi(getenv("GIMMIE_BACKUP_RETENTION", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid GIMMIE_BACKUP_RETENTION: %w", err)
	}

	cfg := &Config{
		Password: os.Getenv("GIMMIE_PASSWORD"),
		Backup: Backup{
			S3: backup.S3Config{
				Prefix:          getenv("GIMMIE_BACKUP_S3_PREFIX", ""),
				Region:          getenv("GIMMIE_BACKUP_S3_REGION", ""),
				Endpoint:        getenv("GIMMIE_BACKUP_S3_ENDPOINT", ""),
				PathStyle:       strings.EqualFold(getenv("GIMMIE_BACKUP_S3_PATH_STYLE", ""), "true"),
				AccessKeyID:     getenv("GIMMIE_BACKUP_S3_ACCESS_KEY_ID", ""),
				SecretAccessKey: getenv("GIMMIE_BACKUP_S3_SECRET_ACCESS_KEY", ""),
			},
		},
	}
	for _, o := range strings.Split(getenv("GIMMIE_CORS_ORIGINS", ""), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}

	fs := flag.NewFlagSet("gimmie", flag.ContinueOnError)
	fs.SetOutput(out)

	dbDefault := getenv("GIMMIE_DB", "gimmie.sqlite3")
	fs.StringVar(&cfg.DB, "db", dbDefault, "")
	fs.StringVar(&cfg.DB, "d", dbDefault, "")

	addrDefault := getenv("GIMMIE_ADDR", ":8080")
	fs.StringVar(&cfg.Addr, "addr", addrDefault, "")
	fs.StringVar(&cfg.Addr, "a", addrDefault, "")

	logDefault := getenv("GIMMIE_LOG", "")
	fs.StringVar(&cfg.LogPath, "log", logDefault, "")
	fs.StringVar(&cfg.LogPath, "l", logDefault, "")

	fs.BoolVar(&cfg.Check, "check", false, "")

	var replaceMode string
	fs.StringVar(&replaceMode, "replace-mode", getenv("GIMMIE_REPLACE_MODE", string(list.ReplaceArchive)), "")

	fs.StringVar(&cfg.Backup.Dir, "backup-dir", getenv("GIMMIE_BACKUP_DIR", "backups"), "")
	fs.StringVar(&cfg.Backup.Prefix, "backup-prefix", getenv("GIMMIE_BACKUP_PREFIX", "gimmie"), "")
	fs.StringVar(&cfg.Backup.Schedule, "backup-schedule", getenv("GIMMIE_BACKUP_SCHEDULE", backup.DefaultSchedule), "")
	fs.IntVar(&cfg.Backup.RetentionDays, "backup-retention", retention, "")
	fs.StringVar(&cfg.Backup.S3.Bucket, "backup-s3-bucket", getenv("GIMMIE_BACKUP_S3_BUCKET", ""), "")

	fs.Usage = func() {
		fmt.Fprint(out, usage)
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	if cfg.ReplaceMode, err = list.ParseReplaceMode(replaceMode); err != nil {
		return nil, err
	}
	if cfg.Backup.Enabled() {
		if err := backup.ValidateSchedule(cfg.Backup.Schedule); err != nil {
			return nil, err
		}
		if cfg.Backup.RetentionDays < 1 {
			return nil, fmt.Errorf("backup retention must be at least 1 day, got %d", cfg.Backup.RetentionDays)
		}
		if cfg.Backup.Prefix == "" || strings.ContainsAny(cfg.Backup.Prefix, `/\`) {
			return nil, fmt.Errorf("invalid backup prefix %q", cfg.Backup.Prefix)
		}
	}
	return cfg, nil
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}
