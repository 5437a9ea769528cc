// Package config loads server settings from the environment, an optional
// .env file and command-line flags. Flags take precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
)

// Storage backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Image store modes.
const (
	ImagesDisk   = "disk"
	ImagesInline = "inline"
	ImagesMinIO  = "minio"
)

// Config holds every runtime setting.
type Config struct {
	Addr    string
	LogPath string

	Backend     string
	DBPath      string
	PostgresURL string

	ImageStore   string
	UploadDir    string
	RequireImage bool

	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool

	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string
}

// Usage is printed for -h.
const Usage = `Usage: omara [flags]

Flags:
  -a, -addr <host:port>     listen address (env ADDR, default: :8080)
  -b, -backend <name>       storage backend: sqlite or postgres (env STORAGE_BACKEND, default: sqlite)
  -d, -db <path>            SQLite database path (env SQLITE_PATH, default: omara.sqlite3)
  -p, -postgres <url>       PostgreSQL connection URL (env DATABASE_URL)
  -i, -images <mode>        image store: disk, inline or minio (env IMAGE_STORE, default: disk)
  -u, -uploads <dir>        upload directory for disk images (env UPLOAD_DIR, default: uploads)
  -l, -log <path>           log file path (env LOG_FILE, default: stdout/stderr only)
  -h, -help                 show this help and exit

Other settings come from the environment or a .env file:
  REQUIRE_IMAGE, MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY,
  MINIO_BUCKET, MINIO_USE_SSL, OPENAI_API_KEY, OPENAI_BASE_URL, OPENAI_MODEL
`

// Load reads an optional .env file in the working directory and then
// parses args over the environment.
func Load(args []string) (*Config, error) {
	// A missing .env file is fine.
	_ = godotenv.Load()
	return Parse(args, os.Getenv)
}

// Parse builds a Config from getenv and args. It returns flag.ErrHelp when
// help was requested.
func Parse(args []string, getenv func(string) string) (*Config, error) {
	env := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}
	envBool := func(key string, def bool) bool {
		b, err := strconv.ParseBool(env(key, strconv.FormatBool(def)))
		if err != nil {
			return def
		}
		return b
	}

	cfg := &Config{
		Addr:        env("ADDR", ":8080"),
		LogPath:     env("LOG_FILE", ""),
		Backend:     env("STORAGE_BACKEND", BackendSQLite),
		DBPath:      env("SQLITE_PATH", "omara.sqlite3"),
		PostgresURL: env("DATABASE_URL", ""),

		ImageStore:   env("IMAGE_STORE", ImagesDisk),
		UploadDir:    env("UPLOAD_DIR", "uploads"),
		RequireImage: envBool("REQUIRE_IMAGE", true),

		MinIOEndpoint:  env("MINIO_ENDPOINT", ""),
		MinIOAccessKey: env("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey: env("MINIO_SECRET_KEY", ""),
		MinIOBucket:    env("MINIO_BUCKET", "omara"),
		MinIOUseSSL:    envBool("MINIO_USE_SSL", false),

		OpenAIKey:     env("OPENAI_API_KEY", ""),
		OpenAIBaseURL: env("OPENAI_BASE_URL", ""),
		OpenAIModel:   env("OPENAI_MODEL", ""),
	}

	fs := flag.NewFlagSet("omara", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	pair := func(p *string, short, long string) {
		fs.StringVar(p, long, *p, "")
		fs.StringVar(p, short, *p, "")
	}
	pair(&cfg.Addr, "a", "addr")
	pair(&cfg.Backend, "b", "backend")
	pair(&cfg.DBPath, "d", "db")
	pair(&cfg.PostgresURL, "p", "postgres")
	pair(&cfg.ImageStore, "i", "images")
	pair(&cfg.UploadDir, "u", "uploads")
	pair(&cfg.LogPath, "l", "log")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, flag.ErrHelp
		}
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	cfg.Backend = strings.ToLower(cfg.Backend)
	cfg.ImageStore = strings.ToLower(cfg.ImageStore)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the selected backends have what they need.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.Backend, validation.Required, validation.In(BackendSQLite, BackendPostgres)),
		validation.Field(&c.DBPath, validation.When(c.Backend == BackendSQLite, validation.Required)),
		validation.Field(&c.PostgresURL, validation.When(c.Backend == BackendPostgres, validation.Required.Error("is required for the postgres backend"))),
		validation.Field(&c.ImageStore, validation.Required, validation.In(ImagesDisk, ImagesInline, ImagesMinIO)),
		validation.Field(&c.UploadDir, validation.When(c.ImageStore == ImagesDisk, validation.Required)),
		validation.Field(&c.MinIOEndpoint, validation.When(c.ImageStore == ImagesMinIO, validation.Required.Error("is required for the minio image store"))),
		validation.Field(&c.MinIOBucket, validation.When(c.ImageStore == ImagesMinIO, validation.Required)),
	)
}
