package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/samvad-hq/soupchef/internal/domain"
	"github.com/samvad-hq/soupchef/internal/output"
	"github.com/samvad-hq/soupchef/internal/ratelimit"
)

const (
	AppName   = "soupchef"
	envPrefix = "SOUPCHEF"
)

// Verbosity tiers, from least to most output.
const (
	VerbosityQuiet   = "quiet"
	VerbosityDefault = "default"
	VerbosityVerbose = "verbose"
	VerbosityDebug   = "debug"
)

// Config holds the run configuration merged from defaults, config file,
// environment variables and command line flags (highest precedence).
type Config struct {
	AppName string `mapstructure:"app_name"`

	Mode   domain.Mode `mapstructure:"-"`
	Inputs []string    `mapstructure:"-"`

	Force          bool   `mapstructure:"force"`
	OutFolder      string `mapstructure:"out"`
	Num            int    `mapstructure:"num"`
	RecursionDepth int    `mapstructure:"recursion"`
	Comments       int    `mapstructure:"comments"`
	RateLimit      string `mapstructure:"rate_limit"`
	StartPage      int    `mapstructure:"page"`
	Sort           string `mapstructure:"sort"`
	Filenames      string `mapstructure:"filenames"`
	Dirnames       string `mapstructure:"dirnames"`
	Format         string `mapstructure:"format"`
	IndexOnly      bool   `mapstructure:"index_only"`
	IndexType      string `mapstructure:"index_type"`
	IndexPath      string `mapstructure:"index_path"`

	Quiet     bool   `mapstructure:"quiet"`
	Verbose   bool   `mapstructure:"verbose"`
	Debug     bool   `mapstructure:"debug"`
	LogFormat string `mapstructure:"log_format"`

	BaseURL            string  `mapstructure:"base_url"`
	APIBaseURL         string  `mapstructure:"api_base_url"`
	HTTPTimeoutSeconds int64   `mapstructure:"http_timeout_seconds"`
	HTTPRetries        int     `mapstructure:"http_retries"`
	MaxRPS             float64 `mapstructure:"max_rps"`

	PublishersFile string `mapstructure:"publishers_file"`
	MetricsFile    string `mapstructure:"metrics_file"`

	RateInterval ratelimit.Interval    `mapstructure:"-"`
	SortMode     domain.SortMode       `mapstructure:"-"`
	FileNaming   output.FileConvention `mapstructure:"-"`
	DirLayout    output.DirConvention  `mapstructure:"-"`
	OutputFormat output.Format         `mapstructure:"-"`
	HTTPTimeout  time.Duration         `mapstructure:"-"`
	ConfigFile   string                `mapstructure:"-"`
}

// flagKeys maps command line flag names to their config keys.
var flagKeys = map[string]string{
	"force":        "force",
	"out":          "out",
	"num":          "num",
	"recursion":    "recursion",
	"comments":     "comments",
	"rate-limit":   "rate_limit",
	"page":         "page",
	"sort":         "sort",
	"filenames":    "filenames",
	"dirnames":     "dirnames",
	"format":       "format",
	"index-only":   "index_only",
	"index-type":   "index_type",
	"quiet":        "quiet",
	"verbose":      "verbose",
	"debug":        "debug",
	"publishers":   "publishers_file",
	"metrics-file": "metrics_file",
}

// ModeFlags lists the mutually exclusive acquisition mode flags.
var ModeFlags = []string{"daily", "search", "url", "id", "random", "all", "refresh"}

// Load reads configuration from defaults, an optional config file, environment
// variables and the parsed flag set. args are the positional inputs.
func Load(flags *pflag.FlagSet, args []string) (*Config, error) {
	_ = godotenv.Load(".env")

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cfgFile := ""
	if flags != nil {
		if f := flags.Lookup("config"); f != nil {
			cfgFile = f.Value.String()
		}
	}
	if err := readConfigFile(v, cfgFile); err != nil {
		return nil, err
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()
	cfg.Inputs = args

	mode, err := modeFromFlags(flags)
	if err != nil {
		return nil, err
	}
	cfg.Mode = mode

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", AppName)
	v.SetDefault("force", false)
	v.SetDefault("out", "crawl")
	v.SetDefault("num", 30)
	v.SetDefault("recursion", 0)
	v.SetDefault("comments", 100)
	v.SetDefault("rate_limit", "0.1-0.5") // seconds
	v.SetDefault("page", 1)
	v.SetDefault("sort", string(domain.SortRelevance))
	v.SetDefault("filenames", string(output.FilesPlain))
	v.SetDefault("dirnames", string(output.DirsFlat))
	v.SetDefault("format", string(output.FormatJSON))
	v.SetDefault("index_only", false)
	v.SetDefault("index_type", "file")
	v.SetDefault("index_path", "")
	v.SetDefault("log_format", "console")
	v.SetDefault("base_url", "https://www.chefkoch.de")
	v.SetDefault("api_base_url", "https://api.chefkoch.de")
	v.SetDefault("http_timeout_seconds", 15)
	v.SetDefault("http_retries", 2)
	v.SetDefault("max_rps", 0)
	v.SetDefault("publishers_file", "")
	v.SetDefault("metrics_file", "")
}

// readConfigFile loads an explicit config file (must exist) or the first
// soupchef.yaml found in the XDG config dir or the working directory.
func readConfigFile(v *viper.Viper, explicit string) error {
	if explicit != "" {
		v.SetConfigFile(explicit)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("%w: read config file %s: %v", domain.ErrArgument, explicit, err)
		}
		return nil
	}

	v.SetConfigName(AppName)
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(xdg.ConfigHome, AppName))
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("%w: read config file: %v", domain.ErrArgument, err)
	}
	return nil
}

func modeFromFlags(flags *pflag.FlagSet) (domain.Mode, error) {
	if flags == nil {
		return domain.ModeUnknown, nil
	}
	mode := domain.ModeUnknown
	for _, name := range ModeFlags {
		set, err := flags.GetBool(name)
		if err != nil || !set {
			continue
		}
		if mode != domain.ModeUnknown {
			return domain.ModeUnknown, fmt.Errorf("%w: modes --%s and --%s are mutually exclusive", domain.ErrArgument, mode, name)
		}
		if mode, err = domain.ParseMode(name); err != nil {
			return domain.ModeUnknown, err
		}
	}
	return mode, nil
}

// Validate checks option values and derives the typed fields.
func (c *Config) Validate() error {
	var err error

	if c.RateInterval, err = ratelimit.ParseInterval(c.RateLimit); err != nil {
		return err
	}
	if c.SortMode, err = domain.ParseSortMode(c.Sort); err != nil {
		return err
	}
	if c.FileNaming, err = output.ParseFileConvention(c.Filenames); err != nil {
		return err
	}
	if c.DirLayout, err = output.ParseDirConvention(c.Dirnames); err != nil {
		return err
	}
	if c.OutputFormat, err = output.ParseFormat(c.Format); err != nil {
		return err
	}

	if strings.TrimSpace(c.OutFolder) == "" {
		return fmt.Errorf("%w: output folder is empty", domain.ErrArgument)
	}
	if c.RecursionDepth < 0 {
		return fmt.Errorf("%w: recursion depth must be >= 0, got %d", domain.ErrArgument, c.RecursionDepth)
	}
	if c.Comments < domain.Unbounded {
		return fmt.Errorf("%w: comment count must be -1 or >= 0, got %d", domain.ErrArgument, c.Comments)
	}

	switch strings.ToLower(strings.TrimSpace(c.IndexType)) {
	case "file", "bbolt", "sqlite", "memory":
	default:
		return fmt.Errorf("%w: unsupported index type %q", domain.ErrArgument, c.IndexType)
	}

	tiers := 0
	for _, on := range []bool{c.Quiet, c.Verbose, c.Debug} {
		if on {
			tiers++
		}
	}
	if tiers > 1 {
		return fmt.Errorf("%w: --quiet, --verbose and --debug are mutually exclusive", domain.ErrArgument)
	}

	if c.IndexOnly && c.Mode == domain.ModeRefresh {
		return fmt.Errorf("%w: --index-only cannot be combined with --refresh", domain.ErrArgument)
	}

	if c.HTTPTimeoutSeconds <= 0 {
		return fmt.Errorf("%w: http_timeout_seconds must be positive", domain.ErrArgument)
	}
	c.HTTPTimeout = time.Duration(c.HTTPTimeoutSeconds) * time.Second
	if c.HTTPRetries < 0 {
		return fmt.Errorf("%w: http_retries must be >= 0", domain.ErrArgument)
	}
	if c.MaxRPS < 0 {
		return fmt.Errorf("%w: max_rps must be >= 0", domain.ErrArgument)
	}

	return c.Request().Validate()
}

// Request builds the acquisition request described by the configuration.
func (c *Config) Request() domain.FetchRequest {
	return domain.FetchRequest{
		Mode:      c.Mode,
		Inputs:    c.Inputs,
		Count:     c.Num,
		StartPage: c.StartPage,
		Sort:      c.SortMode,
	}
}

// Verbosity returns the selected output tier.
func (c *Config) Verbosity() string {
	switch {
	case c.Quiet:
		return VerbosityQuiet
	case c.Debug:
		return VerbosityDebug
	case c.Verbose:
		return VerbosityVerbose
	default:
		return VerbosityDefault
	}
}

// ResolvedIndexPath returns the index location, defaulting to a file inside
// the output folder named after the backend.
func (c *Config) ResolvedIndexPath() string {
	if strings.TrimSpace(c.IndexPath) != "" {
		return c.IndexPath
	}
	switch strings.ToLower(c.IndexType) {
	case "bbolt":
		return filepath.Join(c.OutFolder, "index.db")
	case "sqlite":
		return filepath.Join(c.OutFolder, "index.sqlite")
	default:
		return filepath.Join(c.OutFolder, "index.dat")
	}
}
