// Package config contains the loader and strongly typed model for rrbot.yaml.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	envparse "github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/codex-k8s/rrbot/internal/env"
)

const (
	// DefaultPath is the config file looked up when --config is not given.
	DefaultPath = "rrbot.yaml"

	// DefaultHotTake is the number of hot posts scanned per pass.
	DefaultHotTake = 50

	// DefaultReplyText is posted under every matching post or comment.
	DefaultReplyText = "The RR is the [Recommended Routine](https://www.reddit.com/r/bodyweightfitness/wiki/kb/recommended_routine).\n" +
		"*****\n" +
		"^(I am a bot, flex-beep-boop)"

	// DefaultUserAgent identifies the bot to the Reddit API.
	DefaultUserAgent = "linux:com.codex-k8s.rrbot:v1.0"

	defaultBaseURL  = "https://oauth.reddit.com"
	defaultTokenURL = "https://www.reddit.com/api/v1/access_token"
	defaultTimeout  = "30s"
)

// Config is the full rrbot configuration after template rendering and env overrides.
type Config struct {
	// EnvFiles lists .env files loaded before rendering; "?name" marks an optional file.
	EnvFiles []string `yaml:"envFiles,omitempty"`
	// Reddit holds API credentials and endpoints.
	Reddit RedditConfig `yaml:"reddit"`
	// Scan controls a single pass.
	Scan ScanConfig `yaml:"scan"`
	// State describes where the reply ledgers live.
	State StateConfig `yaml:"state"`
	// Metrics configures pass metric export.
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
	// Log configures the process logger.
	Log LogConfig `yaml:"log,omitempty"`

	// Dir is the directory of the loaded config file; relative paths resolve against it.
	Dir string `yaml:"-"`
}

// RedditConfig describes the script-app credentials and API endpoints.
type RedditConfig struct {
	// ClientID is the script app id.
	ClientID string `yaml:"clientID" env:"RRBOT_CLIENT_ID"`
	// ClientSecret is the script app secret.
	ClientSecret string `yaml:"clientSecret" env:"RRBOT_CLIENT_SECRET"`
	// Username is the bot account.
	Username string `yaml:"username" env:"RRBOT_USERNAME"`
	// Password is the bot account password.
	Password string `yaml:"password" env:"RRBOT_PASSWORD"`
	// UserAgent is sent on every request.
	UserAgent string `yaml:"userAgent,omitempty" env:"RRBOT_USER_AGENT"`
	// Subreddit is the community scanned, without the r/ prefix.
	Subreddit string `yaml:"subreddit" env:"RRBOT_SUBREDDIT"`
	// BaseURL is the OAuth API root.
	BaseURL string `yaml:"baseURL,omitempty" env:"RRBOT_REDDIT_BASE_URL"`
	// TokenURL is the OAuth token endpoint.
	TokenURL string `yaml:"tokenURL,omitempty" env:"RRBOT_REDDIT_TOKEN_URL"`
	// Timeout is the per-request timeout (e.g. "30s").
	Timeout string `yaml:"timeout,omitempty" env:"RRBOT_REDDIT_TIMEOUT"`
}

// ScanConfig controls what a pass looks at and whether it replies.
type ScanConfig struct {
	// HotTake is the upper bound on posts scanned per pass.
	HotTake int `yaml:"hotTake,omitempty" env:"RRBOT_HOT_TAKE"`
	// MonitorOnly logs matches without posting replies. Observed items are still recorded.
	MonitorOnly bool `yaml:"monitorOnly,omitempty" env:"RRBOT_MONITOR_ONLY"`
	// ReplyText is the markdown reply body.
	ReplyText string `yaml:"replyText,omitempty" env:"RRBOT_REPLY_TEXT"`
}

// StateConfig describes how the reply ledgers are stored.
type StateConfig struct {
	// Backend is "file" (default) or "sqlite".
	Backend string `yaml:"backend,omitempty" env:"RRBOT_STATE_BACKEND"`
	// Dir is the base directory for ledger files and the SQLite database.
	Dir string `yaml:"dir,omitempty" env:"RRBOT_STATE_DIR"`
	// PostsFile is the post ledger file name for the file backend.
	PostsFile string `yaml:"postsFile,omitempty" env:"RRBOT_POSTS_FILE"`
	// CommentsFile is the comment ledger file name for the file backend.
	CommentsFile string `yaml:"commentsFile,omitempty" env:"RRBOT_COMMENTS_FILE"`
	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string `yaml:"sqlitePath,omitempty" env:"RRBOT_SQLITE_PATH"`
}

// MetricsConfig configures where pass metrics are exported. Both sinks are optional.
type MetricsConfig struct {
	// Textfile is a node_exporter textfile collector path.
	Textfile string `yaml:"textfile,omitempty" env:"RRBOT_METRICS_TEXTFILE"`
	// PushgatewayURL is a Prometheus Pushgateway base URL.
	PushgatewayURL string `yaml:"pushgatewayURL,omitempty" env:"RRBOT_PUSHGATEWAY_URL"`
	// Job is the Pushgateway job label.
	Job string `yaml:"job,omitempty" env:"RRBOT_METRICS_JOB"`
}

// LogConfig configures the logger.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level,omitempty" env:"RRBOT_LOG_LEVEL"`
	// Format is text or json.
	Format string `yaml:"format,omitempty" env:"RRBOT_LOG_FORMAT"`
}

// RequestTimeout parses Reddit.Timeout, falling back to the default.
func (c *Config) RequestTimeout() time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(c.Reddit.Timeout))
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(defaultTimeout)
	}
	return d
}

// ResolvePath resolves p against the state dir, then the config dir.
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	base := c.State.Dir
	if !filepath.IsAbs(base) {
		base = filepath.Join(c.Dir, base)
	}
	return filepath.Join(base, p)
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{Dir: "."}
	cfg.applyDefaults()
	return cfg
}

// LoadOptions influences how Load resolves the config.
type LoadOptions struct {
	// Optional makes a missing config file fall back to defaults plus env overrides.
	Optional bool
	// Environ replaces the process environment, mainly for tests.
	Environ env.Vars
}

// rawHeader holds the fields needed before the document is rendered.
type rawHeader struct {
	EnvFiles []string `yaml:"envFiles"`
}

// Load reads path, loads its envFiles, renders it as a Go template, decodes it and applies
// RRBOT_* overrides. Precedence, lowest first: defaults, rrbot.yaml, envFiles, process env.
func Load(path string, opts LoadOptions) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	osVars := opts.Environ
	if osVars == nil {
		osVars = env.FromOS()
	}

	rawBytes, err := os.ReadFile(absPath)
	if err != nil {
		if !opts.Optional || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %q: %w", absPath, err)
		}
		rawBytes = nil
	}

	var header rawHeader
	if err := yaml.Unmarshal(rawBytes, &header); err != nil {
		return nil, fmt.Errorf("parse top-level config fields: %w", err)
	}

	baseDir := filepath.Dir(absPath)
	envFileVars, err := env.LoadEnvFiles(baseDir, header.EnvFiles)
	if err != nil {
		return nil, err
	}
	envMap := env.Merge(envFileVars, osVars)

	rendered, err := RenderTemplate(filepath.Base(absPath), rawBytes, envMap)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(rendered, cfg); err != nil {
		return nil, fmt.Errorf("parse rendered %s: %w", filepath.Base(absPath), err)
	}
	cfg.Dir = baseDir

	if err := envparse.ParseWithOptions(cfg, envparse.Options{Environment: envMap}); err != nil {
		return nil, fmt.Errorf("apply RRBOT_* overrides: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// RenderTemplate renders raw as a Go template with env helpers bound to vars.
func RenderTemplate(name string, raw []byte, vars env.Vars) ([]byte, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Funcs(buildFuncMap(vars)).Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, nil); err != nil {
		return nil, fmt.Errorf("render template %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func buildFuncMap(vars env.Vars) template.FuncMap {
	return template.FuncMap{
		"env":     funcEnvOr(vars),
		"default": funcDef,
		"quote":   funcQuote,
	}
}

// funcEnvOr returns the named variable, or def when it is unset or blank.
func funcEnvOr(vars env.Vars) func(key string, def ...string) string {
	return func(key string, def ...string) string {
		if v, ok := vars.Lookup(key); ok {
			return v
		}
		if len(def) > 0 {
			return def[0]
		}
		return ""
	}
}

func funcDef(def, value string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}

// funcQuote renders value as a double-quoted YAML scalar.
func funcQuote(value string) string {
	out, err := yaml.Marshal(value)
	if err != nil {
		return `""`
	}
	s := strings.TrimSpace(string(out))
	if !strings.HasPrefix(s, `"`) && !strings.HasPrefix(s, `'`) {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return s
}

func (c *Config) applyDefaults() {
	if c.Dir == "" {
		c.Dir = "."
	}
	if strings.TrimSpace(c.Reddit.UserAgent) == "" {
		c.Reddit.UserAgent = DefaultUserAgent
	}
	if strings.TrimSpace(c.Reddit.BaseURL) == "" {
		c.Reddit.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(c.Reddit.TokenURL) == "" {
		c.Reddit.TokenURL = defaultTokenURL
	}
	if strings.TrimSpace(c.Reddit.Timeout) == "" {
		c.Reddit.Timeout = defaultTimeout
	}
	c.Reddit.Subreddit = strings.TrimPrefix(strings.TrimSpace(c.Reddit.Subreddit), "r/")
	if c.Scan.HotTake <= 0 {
		c.Scan.HotTake = DefaultHotTake
	}
	if strings.TrimSpace(c.Scan.ReplyText) == "" {
		c.Scan.ReplyText = DefaultReplyText
	}
	if strings.TrimSpace(c.State.Backend) == "" {
		c.State.Backend = "file"
	}
	c.State.Backend = strings.ToLower(strings.TrimSpace(c.State.Backend))
	if strings.TrimSpace(c.State.Dir) == "" {
		c.State.Dir = "."
	}
	if strings.TrimSpace(c.State.PostsFile) == "" {
		c.State.PostsFile = "posts.db"
	}
	if strings.TrimSpace(c.State.CommentsFile) == "" {
		c.State.CommentsFile = "comments.db"
	}
	if strings.TrimSpace(c.State.SQLitePath) == "" {
		c.State.SQLitePath = "rrbot.sqlite"
	}
	if strings.TrimSpace(c.Metrics.Job) == "" {
		c.Metrics.Job = "rrbot"
	}
	if strings.TrimSpace(c.Log.Level) == "" {
		c.Log.Level = "info"
	}
	if strings.TrimSpace(c.Log.Format) == "" {
		c.Log.Format = "text"
	}
}

// Validate checks the fields a scan pass needs.
func (c *Config) Validate() error {
	var missing []string
	if c.Reddit.ClientID == "" {
		missing = append(missing, "reddit.clientID (RRBOT_CLIENT_ID)")
	}
	if c.Reddit.ClientSecret == "" {
		missing = append(missing, "reddit.clientSecret (RRBOT_CLIENT_SECRET)")
	}
	if c.Reddit.Username == "" {
		missing = append(missing, "reddit.username (RRBOT_USERNAME)")
	}
	if c.Reddit.Password == "" {
		missing = append(missing, "reddit.password (RRBOT_PASSWORD)")
	}
	if c.Reddit.Subreddit == "" {
		missing = append(missing, "reddit.subreddit (RRBOT_SUBREDDIT)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	switch c.State.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("unsupported state backend %q", c.State.Backend)
	}
	if _, err := time.ParseDuration(c.Reddit.Timeout); err != nil {
		return fmt.Errorf("invalid reddit.timeout %q: %w", c.Reddit.Timeout, err)
	}
	return nil
}
