package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment keys
const (
	EnvPort              = "PORT"
	EnvSketchfabEmail    = "SKETCHFAB_EMAIL"
	EnvSketchfabPassword = "SKETCHFAB_PASSWORD"
	EnvCloudName         = "CLOUDINARY_CLOUD_NAME"
	EnvCloudAPIKey       = "CLOUDINARY_API_KEY"
	EnvCloudAPISecret    = "CLOUDINARY_API_SECRET"
	EnvDataDir           = "MODEL_MIRROR_DATA_DIR"
	EnvStorageProvider   = "MODEL_MIRROR_STORAGE"
	EnvChromePath        = "CHROME_PATH"
	EnvLogDevelopment    = "MODEL_MIRROR_LOG_DEV"
)

// Storage providers
const (
	ProviderCloudinary = "cloudinary"
	ProviderFilesystem = "filesystem"
)

// Default values
const (
	DefaultPort                = "4000"
	DefaultDataDir             = "data"
	DefaultStorageFolder       = "proto3d-models"
	DefaultResourceKind        = "image"
	DefaultSessionTimeout      = 3 * time.Minute
	DefaultInterceptionTimeout = 90 * time.Second
	DefaultFetchTimeout        = 5 * time.Minute
	DefaultFetchMaxBytes       = 256 << 20
	DefaultMaxParallel         = 2
	DefaultLoginRate           = 0.2 // logins per second
	DefaultLoginBurst          = 1
	DefaultSearchCacheTTL      = 5 * time.Minute
	DefaultSearchMaxFileSize   = 10485760
	DefaultSearchRate          = 5.0
	DefaultSearchAPI           = "https://api.sketchfab.com/v3/search"
)

// Parallel run bounds
const (
	MinParallel = 1
	MaxParallel = 10
)

var (
	ErrConfigFileUnreadable       = errors.New("config file is unreadable")
	ErrConfigFileUnmarshallable   = errors.New("config file is unmarshallable")
	ErrEmailMissing               = errors.New("sketchfab.email is missing (set " + EnvSketchfabEmail + ")")
	ErrPasswordMissing            = errors.New("sketchfab.password is missing (set " + EnvSketchfabPassword + ")")
	ErrCloudNameMissing           = errors.New("storage.cloudinary.cloudName is missing (set " + EnvCloudName + ")")
	ErrCloudAPIKeyMissing         = errors.New("storage.cloudinary.apiKey is missing (set " + EnvCloudAPIKey + ")")
	ErrCloudAPISecretMissing      = errors.New("storage.cloudinary.apiSecret is missing (set " + EnvCloudAPISecret + ")")
	ErrFilesystemPublicURLMissing = errors.New("storage.filesystem.publicUrl is missing")
	ErrUnknownStorageProvider     = errors.New("storage.provider must be cloudinary or filesystem")
	ErrStorageFolderMissing       = errors.New("storage.folder is missing")
	ErrDataDirMissing             = errors.New("dataDir is missing")
	ErrInterceptionTimeoutInvalid = errors.New("browser.interceptionTimeout must be positive")
	ErrSessionTimeoutInvalid      = errors.New("browser.sessionTimeout must be positive")
)

type HTTP struct {
	Addr string `yaml:"addr"`
}

type Log struct {
	Development bool `yaml:"development"`
}

type Sketchfab struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

type Browser struct {
	Headless            bool          `yaml:"headless"`
	NoSandbox           bool          `yaml:"noSandbox"`
	ChromePath          string        `yaml:"chromePath,omitempty"`
	UserAgent           string        `yaml:"userAgent,omitempty"`
	SessionTimeout      time.Duration `yaml:"sessionTimeout"`
	InterceptionTimeout time.Duration `yaml:"interceptionTimeout"`
}

type Fetch struct {
	Timeout  time.Duration `yaml:"timeout"`
	MaxBytes int64         `yaml:"maxBytes"`
}

type Cloudinary struct {
	CloudName string `yaml:"cloudName"`
	APIKey    string `yaml:"apiKey"`
	APISecret string `yaml:"apiSecret"`
}

type Filesystem struct {
	Dir       string `yaml:"dir"`
	PublicURL string `yaml:"publicUrl"`
}

type Storage struct {
	Provider     string     `yaml:"provider"`
	Folder       string     `yaml:"folder"`
	ResourceKind string     `yaml:"resourceKind"`
	Cloudinary   Cloudinary `yaml:"cloudinary"`
	Filesystem   Filesystem `yaml:"filesystem"`
}

type Pipeline struct {
	MaxParallel int     `yaml:"maxParallel"`
	LoginRate   float64 `yaml:"loginRate"`  // logins per second, 0 disables pacing
	LoginBurst  int     `yaml:"loginBurst"` // burst size
}

type Search struct {
	APIURL      string        `yaml:"apiUrl"`
	CacheTTL    time.Duration `yaml:"cacheTTL"`
	MaxFileSize int64         `yaml:"maxFileSize"`
	Rate        float64       `yaml:"rate"` // requests per second
}

// Config is the complete process configuration. It is built once by Load and
// passed by value into constructors.
type Config struct {
	HTTP      HTTP      `yaml:"http"`
	Log       Log       `yaml:"log"`
	DataDir   string    `yaml:"dataDir"`
	Sketchfab Sketchfab `yaml:"sketchfab"`
	Browser   Browser   `yaml:"browser"`
	Fetch     Fetch     `yaml:"fetch"`
	Storage   Storage   `yaml:"storage"`
	Pipeline  Pipeline  `yaml:"pipeline"`
	Search    Search    `yaml:"search"`
}

// Default returns a configuration with every optional value filled in.
// Credentials are left empty.
func Default() Config {
	return Config{
		HTTP:    HTTP{Addr: ":" + DefaultPort},
		DataDir: DefaultDataDir,
		Browser: Browser{
			Headless:            true,
			NoSandbox:           true,
			SessionTimeout:      DefaultSessionTimeout,
			InterceptionTimeout: DefaultInterceptionTimeout,
		},
		Fetch: Fetch{
			Timeout:  DefaultFetchTimeout,
			MaxBytes: DefaultFetchMaxBytes,
		},
		Storage: Storage{
			Provider:     ProviderCloudinary,
			Folder:       DefaultStorageFolder,
			ResourceKind: DefaultResourceKind,
		},
		Pipeline: Pipeline{
			MaxParallel: DefaultMaxParallel,
			LoginRate:   DefaultLoginRate,
			LoginBurst:  DefaultLoginBurst,
		},
		Search: Search{
			APIURL:      DefaultSearchAPI,
			CacheTTL:    DefaultSearchCacheTTL,
			MaxFileSize: DefaultSearchMaxFileSize,
			Rate:        DefaultSearchRate,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at path
// and the process environment, then validates it. An empty path skips the file.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

// LoadUnchecked is Load without Validate, for commands that only read local
// state and need no credentials.
func LoadUnchecked(path string) (Config, error) {
	return read(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg, err := read(path, lookup)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func read(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %v", ErrConfigFileUnreadable, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: %v", ErrConfigFileUnmarshallable, err)
		}
	}

	cfg.applyEnv(lookup)
	cfg.normalize()
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	var port string
	set(EnvPort, &port)
	if port != "" {
		c.HTTP.Addr = ":" + strings.TrimPrefix(port, ":")
	}

	set(EnvSketchfabEmail, &c.Sketchfab.Email)
	set(EnvSketchfabPassword, &c.Sketchfab.Password)
	set(EnvCloudName, &c.Storage.Cloudinary.CloudName)
	set(EnvCloudAPIKey, &c.Storage.Cloudinary.APIKey)
	set(EnvCloudAPISecret, &c.Storage.Cloudinary.APISecret)
	set(EnvDataDir, &c.DataDir)
	set(EnvStorageProvider, &c.Storage.Provider)
	set(EnvChromePath, &c.Browser.ChromePath)

	if v, ok := lookup(EnvLogDevelopment); ok {
		if dev, err := strconv.ParseBool(v); err == nil {
			c.Log.Development = dev
		}
	}
}

func (c *Config) normalize() {
	c.Storage.Provider = strings.ToLower(strings.TrimSpace(c.Storage.Provider))

	if c.Pipeline.MaxParallel < MinParallel {
		c.Pipeline.MaxParallel = MinParallel
	}
	if c.Pipeline.MaxParallel > MaxParallel {
		c.Pipeline.MaxParallel = MaxParallel
	}
	// zero disables login pacing
	if c.Pipeline.LoginRate < 0 {
		c.Pipeline.LoginRate = DefaultLoginRate
	}
	if c.Pipeline.LoginBurst <= 0 {
		c.Pipeline.LoginBurst = DefaultLoginBurst
	}
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = DefaultFetchTimeout
	}
	if c.Search.CacheTTL <= 0 {
		c.Search.CacheTTL = DefaultSearchCacheTTL
	}
	if c.Search.MaxFileSize <= 0 {
		c.Search.MaxFileSize = DefaultSearchMaxFileSize
	}
	if c.Search.Rate <= 0 {
		c.Search.Rate = DefaultSearchRate
	}
	if c.Storage.ResourceKind == "" {
		c.Storage.ResourceKind = DefaultResourceKind
	}
	if c.Storage.Provider == ProviderFilesystem && c.Storage.Filesystem.Dir == "" {
		c.Storage.Filesystem.Dir = filepath.Join(c.DataDir, "objects")
	}
}

// Validate fails fast on any missing required value
func (c Config) Validate() error {
	if c.DataDir == "" {
		return ErrDataDirMissing
	}
	if c.Sketchfab.Email == "" {
		return ErrEmailMissing
	}
	if c.Sketchfab.Password == "" {
		return ErrPasswordMissing
	}
	if c.Browser.SessionTimeout <= 0 {
		return ErrSessionTimeoutInvalid
	}
	if c.Browser.InterceptionTimeout <= 0 {
		return ErrInterceptionTimeoutInvalid
	}
	if c.Storage.Folder == "" {
		return ErrStorageFolderMissing
	}

	switch c.Storage.Provider {
	case ProviderCloudinary:
		if c.Storage.Cloudinary.CloudName == "" {
			return ErrCloudNameMissing
		}
		if c.Storage.Cloudinary.APIKey == "" {
			return ErrCloudAPIKeyMissing
		}
		if c.Storage.Cloudinary.APISecret == "" {
			return ErrCloudAPISecretMissing
		}
	case ProviderFilesystem:
		if c.Storage.Filesystem.PublicURL == "" {
			return ErrFilesystemPublicURLMissing
		}
	default:
		return ErrUnknownStorageProvider
	}
	return nil
}

// RecordsDir returns the directory holding the record store
func (c Config) RecordsDir() string {
	return filepath.Join(c.DataDir, "records")
}

// Generate renders the default configuration as YAML for `config init`.
// Credentials are left empty so Load keeps failing until they are supplied,
// in the file or through the environment.
func Generate() ([]byte, error) {
	body, err := yaml.Marshal(Default())
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("# model-mirror configuration\n")
	b.WriteString("#\n")
	b.WriteString("# Credentials are required and left empty here. Fill them in below or set:\n")
	for _, key := range []string{EnvSketchfabEmail, EnvSketchfabPassword, EnvCloudName, EnvCloudAPIKey, EnvCloudAPISecret} {
		b.WriteString("#   " + key + "\n")
	}
	b.WriteString("\n")
	b.Write(body)
	return []byte(b.String()), nil
}
