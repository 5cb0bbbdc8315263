package internal

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/workbench/internal/issuesync"
	"github.com/starford/workbench/internal/itemservice"
	"github.com/starford/workbench/internal/models"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// DefaultConfigFile is the repository-relative config location.
const DefaultConfigFile = ".workbench/config.yaml"

// Config represents the workbench configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Paths  PathsConfig       `yaml:"paths"`
	IDs    IDsConfig         `yaml:"ids"`
	Git    GitConfig         `yaml:"git"`
	GitHub GitHubConfig      `yaml:"github"`
	Index  IndexConfig       `yaml:"index"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Paths.Validate(); err != nil {
		return fmt.Errorf("paths: %w", err)
	}
	if err := c.IDs.Validate(); err != nil {
		return fmt.Errorf("ids: %w", err)
	}
	if err := c.Git.Validate(); err != nil {
		return fmt.Errorf("git: %w", err)
	}
	if err := c.GitHub.Validate(); err != nil {
		return fmt.Errorf("github: %w", err)
	}
	return nil
}

// ItemServiceConfig maps the paths and ids sections onto the item service.
func (c *Config) ItemServiceConfig(logger *slog.Logger) itemservice.Config {
	return itemservice.Config{
		ItemsDir:     c.Paths.Items,
		DoneDir:      c.Paths.Done,
		DocsDir:      c.Paths.Docs,
		TemplatesDir: c.Paths.Templates,
		IDWidth:      c.IDs.Width,
		Prefixes:     c.IDs.Prefixes,
		Logger:       logger,
	}
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
	Auth     AuthConfig `yaml:"auth"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// AuthConfig holds API authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// PathsConfig locates work items, docs and templates, relative to the
// repository root.
type PathsConfig struct {
	Items     string `yaml:"items"`
	Done      string `yaml:"done"`
	Docs      string `yaml:"docs"`
	Templates string `yaml:"templates"`
}

// Validate validates the paths configuration.
func (c *PathsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Items, validation.Required, validation.By(relativePath)),
		validation.Field(&c.Done, validation.Required, validation.By(relativePath)),
		validation.Field(&c.Docs, validation.Required, validation.By(relativePath)),
		validation.Field(&c.Templates, validation.By(relativePath)),
	)
}

func relativePath(value any) error {
	s, _ := value.(string)
	if strings.HasPrefix(s, "/") || strings.Contains(s, "..") {
		return fmt.Errorf("must be a path inside the repository")
	}
	return nil
}

var prefixPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]*$`)

// IDsConfig controls work item id allocation.
type IDsConfig struct {
	Width    int               `yaml:"width"`
	Prefixes map[string]string `yaml:"prefixes"`
}

// Validate validates the ids configuration.
func (c *IDsConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Width, validation.Required, validation.Min(1), validation.Max(12)),
	); err != nil {
		return err
	}
	for typ, prefix := range c.Prefixes {
		if !models.IsWorkItemType(typ) {
			return fmt.Errorf("prefixes: unknown work item type %q", typ)
		}
		if err := validation.Validate(prefix, validation.Required, validation.Match(prefixPattern)); err != nil {
			return fmt.Errorf("prefixes: %s: %w", typ, err)
		}
	}
	return nil
}

// GitConfig holds branch settings.
type GitConfig struct {
	DefaultBaseBranch string `yaml:"default_base_branch"`
	Remote            string `yaml:"remote"`
}

// Validate validates the git configuration.
func (c *GitConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DefaultBaseBranch, validation.Required),
		validation.Field(&c.Remote, validation.Required),
	)
}

// GitHubConfig holds the issue tracker settings. Owner and Repository are the
// fallback when the git remote is not a GitHub URL.
type GitHubConfig struct {
	Host       string           `yaml:"host"`
	Owner      string           `yaml:"owner"`
	Repository string           `yaml:"repository"`
	Token      string           `yaml:"token"`
	APIURL     string           `yaml:"api_url"`
	Sync       GitHubSyncConfig `yaml:"sync"`
}

// GitHubSyncConfig holds issue sync defaults.
type GitHubSyncConfig struct {
	ConflictDefault string `yaml:"conflict_default"`
}

// Validate validates the GitHub configuration.
func (c *GitHubConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Host, validation.Required),
		validation.Field(&c.Repository, validation.When(c.Owner != "", validation.Required)),
		validation.Field(&c.Owner, validation.When(c.Repository != "", validation.Required)),
	); err != nil {
		return err
	}
	return validation.Validate(c.Sync.ConflictDefault,
		validation.In(string(issuesync.PolicyFail), string(issuesync.PolicyLocal), string(issuesync.PolicyGithub)),
	)
}

// IndexConfig holds the SQLite index location. An empty path disables the
// index for serve and mcp.
type IndexConfig struct {
	Path string `yaml:"path"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
			Auth: AuthConfig{
				Mode: AuthModeDisabled,
			},
		},
		Paths: PathsConfig{
			Items:     "docs/70-work/items",
			Done:      "docs/70-work/done",
			Docs:      "docs",
			Templates: "docs/70-work/templates",
		},
		IDs: IDsConfig{
			Width: 4,
			Prefixes: map[string]string{
				models.TypeTask:  "TASK",
				models.TypeBug:   "BUG",
				models.TypeSpike: "SPIKE",
			},
		},
		Git: GitConfig{
			DefaultBaseBranch: "main",
			Remote:            "origin",
		},
		GitHub: GitHubConfig{
			Host: "github.com",
			Sync: GitHubSyncConfig{
				ConflictDefault: string(issuesync.PolicyFail),
			},
		},
		Index: IndexConfig{
			Path: ".workbench/index.db",
		},
	}
}
