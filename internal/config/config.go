package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	QueryModeZip    = "zip"
	QueryModeRegion = "region"
)

type Config struct {
	RegionsFile string `validate:"required"`
	ZipsDir     string `validate:"required"`
	ResultsDir  string `validate:"required"`
	UploadsDir  string `validate:"required"`
	IgnoreIDs   []string

	API     APIConfig
	Ledger  LedgerConfig
	Notify  NotifyConfig
	Archive ArchiveConfig

	ServerAddr     string
	InternalSecret string
	// TrustedProxies lists addresses or CIDRs allowed to set X-Forwarded-For.
	TrustedProxies []string `validate:"dive,cidr|ip"`
}

type APIConfig struct {
	BaseURL      string        `validate:"required,url"`
	Token        string
	PageSize     int           `validate:"gte=1,lte=250"`
	Timeout      time.Duration `validate:"gt=0"`
	MaxRetries   int           `validate:"gte=0,lte=10"`
	MaxRetryWait time.Duration `validate:"gt=0"`
	RPS          float64       `validate:"gte=0"`
	QueryMode    string        `validate:"oneof=zip region"`
}

type LedgerConfig struct {
	Driver string `validate:"omitempty,oneof=postgres sqlite mongo"`
	DSN    string `validate:"required_with=Driver"`
}

type NotifyConfig struct {
	ToolName  string
	StatusURL string `validate:"omitempty,url"`
	ErrorURL  string `validate:"omitempty,url"`
	Disabled  bool
}

type ArchiveConfig struct {
	Bucket          string
	Endpoint        string `validate:"omitempty,url"`
	Region          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
}

// Enabled reports whether result files are copied to object storage.
func (a ArchiveConfig) Enabled() bool {
	return a.Bucket != ""
}

var validate = validator.New()

// LoadEnvFiles loads .env and .env.local without overriding variables that
// are already set in the environment.
func LoadEnvFiles(extra ...string) {
	for _, f := range append([]string{".env", ".env.local"}, extra...) {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			log.Printf("config: cannot load %s: %v", f, err)
		}
	}
}

// Load builds the configuration from the environment. Call LoadEnvFiles first
// to pick up .env files.
func Load() (*Config, error) {
	var errs []string
	num := func(key string, def int) int {
		v, err := getInt(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return v
	}

	timeout, err := getDuration("BBB_API_TIMEOUT", 30*time.Second)
	if err != nil {
		errs = append(errs, err.Error())
	}
	maxWait, err := getDuration("BBB_API_MAX_RETRY_WAIT", time.Minute)
	if err != nil {
		errs = append(errs, err.Error())
	}
	rps, err := getFloat("BBB_API_RPS", 5)
	if err != nil {
		errs = append(errs, err.Error())
	}
	notifyDisabled, err := getBool("NOTIFY_DISABLED", false)
	if err != nil {
		errs = append(errs, err.Error())
	}

	cfg := &Config{
		RegionsFile: getEnv("BBB_REGIONS_FILE", "bbb_ids/bbb_ids.csv"),
		ZipsDir:     getEnv("BBB_ZIPS_DIR", "zips"),
		ResultsDir:  getEnv("BBB_RESULTS_DIR", "results"),
		UploadsDir:  getEnv("BBB_UPLOADS_DIR", "uploads"),
		IgnoreIDs:   splitList(os.Getenv("BBB_IGNORE_IDS")),
		API: APIConfig{
			BaseURL:      getEnv("BBB_API_BASE_URL", "https://api.bbb.org"),
			Token:        os.Getenv("BBB_API_TOKEN"),
			PageSize:     num("BBB_API_PAGE_SIZE", 250),
			Timeout:      timeout,
			MaxRetries:   num("BBB_API_MAX_RETRIES", 3),
			MaxRetryWait: maxWait,
			RPS:          rps,
			QueryMode:    strings.ToLower(getEnv("BBB_QUERY_MODE", QueryModeZip)),
		},
		Ledger: LedgerConfig{
			Driver: strings.ToLower(os.Getenv("LEDGER_DRIVER")),
			DSN:    os.Getenv("LEDGER_DSN"),
		},
		Notify: NotifyConfig{
			ToolName:  getEnv("NOTIFY_TOOL_NAME", "BBB Partner API Export"),
			StatusURL: os.Getenv("NOTIFY_STATUS_URL"),
			ErrorURL:  os.Getenv("NOTIFY_ERROR_URL"),
			Disabled:  notifyDisabled,
		},
		Archive: ArchiveConfig{
			Bucket:          os.Getenv("ARCHIVE_BUCKET"),
			Endpoint:        os.Getenv("ARCHIVE_ENDPOINT"),
			Region:          getEnv("ARCHIVE_REGION", "auto"),
			Prefix:          getEnv("ARCHIVE_PREFIX", "bbb-exports"),
			AccessKeyID:     os.Getenv("ARCHIVE_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("ARCHIVE_SECRET_ACCESS_KEY"),
		},
		ServerAddr:     getEnv("APP_ADDR", ":8080"),
		InternalSecret: os.Getenv("INTERNAL_SECRET"),
		TrustedProxies: splitList(os.Getenv("TRUSTED_PROXIES")),
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// RequireAPIToken fails when no Partner API token is configured. Only the
// export needs one; the status report works without.
func (c *Config) RequireAPIToken() error {
	if strings.TrimSpace(c.API.Token) == "" {
		return fmt.Errorf("missing required environment variable: BBB_API_TOKEN")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("%s: %q is not an integer", key, v)
	}
	return n, nil
}

func getFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def, fmt.Errorf("%s: %q is not a number", key, v)
	}
	return f, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("%s: %q is not a duration", key, v)
	}
	return d, nil
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("%s: %q is not a boolean", key, v)
	}
	return b, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
