// Package config loads run settings from an optional YAML file, a .env
// file and the environment. Command-line flags are applied on top by the
// caller, then Validate checks the result.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every setting of a run.
type Config struct {
	Username string `yaml:"username"`
	// Password is never read from the YAML file.
	Password string `yaml:"-"`

	Individuals []string `yaml:"individuals" validate:"dive,fsid"`
	Ascend      int      `yaml:"ascend" validate:"gte=0"`
	Descend     int      `yaml:"descend" validate:"gte=0"`
	Marriage    bool     `yaml:"marriage"`
	Coordinates bool     `yaml:"coordinates"`

	Verbose bool          `yaml:"verbose"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
	Outfile string        `yaml:"outfile"`
	Logfile string        `yaml:"logfile"`

	PageSize          int     `yaml:"page_size" validate:"gte=1,lte=200"`
	Workers           int     `yaml:"workers" validate:"gte=1"`
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`

	CacheDir string        `yaml:"cache_dir"`
	CacheTTL time.Duration `yaml:"cache_ttl" validate:"gte=0"`

	MetricsFile string `yaml:"metrics_file"`
	TraceFile   string `yaml:"trace_file"`

	Upload S3Config `yaml:"upload"`
}

// S3Config names an S3-compatible bucket the output is copied to. Upload is
// enabled when Bucket is set.
type S3Config struct {
	Endpoint  string `yaml:"endpoint" validate:"required_with=Bucket"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key" validate:"required_with=Bucket"`
	SecretKey string `yaml:"-" validate:"required_with=Bucket"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Enabled reports whether an upload target is configured.
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// Default returns the settings of a run with no file, environment or flags.
func Default() Config {
	return Config{
		Ascend:            4,
		Timeout:           60 * time.Second,
		PageSize:          200,
		Workers:           runtime.GOMAXPROCS(0),
		RequestsPerSecond: 10,
		CacheTTL:          24 * time.Hour,
		Upload:            S3Config{Region: "us-east-1", UseSSL: true},
	}
}

// Load returns the defaults overlaid with the YAML file at path (skipped
// when path is empty), then with the environment. A .env file in the
// working directory is loaded into the environment first if present.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("FS_USERNAME", &cfg.Username)
	if v, ok := lookup("FS_PASSWORD"); ok && v != "" {
		cfg.Password = v
	}
	str("FS_CACHE_DIR", &cfg.CacheDir)
	str("FS_S3_ENDPOINT", &cfg.Upload.Endpoint)
	str("FS_S3_REGION", &cfg.Upload.Region)
	str("FS_S3_ACCESS_KEY", &cfg.Upload.AccessKey)
	str("FS_S3_SECRET_KEY", &cfg.Upload.SecretKey)
	str("FS_S3_BUCKET", &cfg.Upload.Bucket)
	str("FS_S3_PREFIX", &cfg.Upload.Prefix)
	if v, ok := lookup("FS_S3_USE_SSL"); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("FS_S3_USE_SSL: %w", err)
		}
		cfg.Upload.UseSSL = b
	}
	return nil
}

var fsidPattern = regexp.MustCompile(`^[A-Z0-9]{4}-[A-Z0-9]{3}$`)

// ValidID reports whether id looks like a tree person id, e.g. "KWCB-2QH".
func ValidID(id string) bool {
	return fsidPattern.MatchString(id)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("fsid", func(fl validator.FieldLevel) bool {
		return ValidID(fl.Field().String())
	})
	return v
}

// Validate checks the settings and reports every invalid field.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "fsid":
		return fmt.Sprintf("%s: %q is not a valid FamilySearch id", fe.Namespace(), fe.Value())
	case "required_with":
		return fmt.Sprintf("%s is required when %s is set", fe.Namespace(), fe.Param())
	}
	if fe.Param() != "" {
		return fmt.Sprintf("%s must satisfy %s=%s", fe.Namespace(), fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s must satisfy %s", fe.Namespace(), fe.Tag())
}
