package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func envFrom(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func fullEnv() map[string]string {
	return map[string]string{
		EnvSketchfabEmail:    "user@example.com",
		EnvSketchfabPassword: "secret",
		EnvCloudName:         "demo",
		EnvCloudAPIKey:       "key",
		EnvCloudAPISecret:    "shh",
	}
}

func TestLoad_EnvOnly(t *testing.T) {
	cfg, err := load("", envFrom(fullEnv()))
	require.NoError(t, err)

	assert.Equal(t, "user@example.com", cfg.Sketchfab.Email)
	assert.Equal(t, "secret", cfg.Sketchfab.Password)
	assert.Equal(t, ProviderCloudinary, cfg.Storage.Provider)
	assert.Equal(t, DefaultStorageFolder, cfg.Storage.Folder)
	assert.Equal(t, DefaultResourceKind, cfg.Storage.ResourceKind)
	assert.Equal(t, ":"+DefaultPort, cfg.HTTP.Addr)
	assert.Equal(t, DefaultInterceptionTimeout, cfg.Browser.InterceptionTimeout)
	assert.Equal(t, filepath.Join(DefaultDataDir, "records"), cfg.RecordsDir())
}

func TestLoad_FailsFastOnMissingCredentials(t *testing.T) {
	tests := []struct {
		name    string
		drop    string
		wantErr error
	}{
		{"email", EnvSketchfabEmail, ErrEmailMissing},
		{"password", EnvSketchfabPassword, ErrPasswordMissing},
		{"cloud name", EnvCloudName, ErrCloudNameMissing},
		{"api key", EnvCloudAPIKey, ErrCloudAPIKeyMissing},
		{"api secret", EnvCloudAPISecret, ErrCloudAPISecretMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := fullEnv()
			delete(env, tt.drop)

			_, err := load("", envFrom(env))
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoad_BlankEnvValueCountsAsMissing(t *testing.T) {
	env := fullEnv()
	env[EnvSketchfabPassword] = "   "

	_, err := load("", envFrom(env))
	require.ErrorIs(t, err, ErrPasswordMissing)
}

func TestLoad_PortOverride(t *testing.T) {
	env := fullEnv()
	env[EnvPort] = "8081"

	cfg, err := load("", envFrom(env))
	require.NoError(t, err)
	assert.Equal(t, ":8081", cfg.HTTP.Addr)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model-mirror.yaml")
	content := `
dataDir: /var/lib/model-mirror
sketchfab:
  email: file@example.com
  password: from-file
browser:
  interceptionTimeout: 30s
storage:
  provider: filesystem
  folder: assets
  filesystem:
    publicUrl: https://cdn.example/assets
pipeline:
  maxParallel: 50
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := load(path, envFrom(map[string]string{EnvSketchfabEmail: "env@example.com"}))
	require.NoError(t, err)

	assert.Equal(t, "env@example.com", cfg.Sketchfab.Email, "environment wins over file")
	assert.Equal(t, "from-file", cfg.Sketchfab.Password)
	assert.Equal(t, 30*time.Second, cfg.Browser.InterceptionTimeout)
	assert.Equal(t, ProviderFilesystem, cfg.Storage.Provider)
	assert.Equal(t, "assets", cfg.Storage.Folder)
	assert.Equal(t, filepath.Join("/var/lib/model-mirror", "objects"), cfg.Storage.Filesystem.Dir)
	assert.Equal(t, MaxParallel, cfg.Pipeline.MaxParallel, "maxParallel is clamped")
}

func TestLoad_UnreadableAndMalformedFile(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "missing.yaml"), envFrom(fullEnv()))
	require.ErrorIs(t, err, ErrConfigFileUnreadable)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sketchfab: [unterminated"), 0o644))
	_, err = load(path, envFrom(fullEnv()))
	require.ErrorIs(t, err, ErrConfigFileUnmarshallable)
}

func TestValidate_StorageProvider(t *testing.T) {
	cfg := Default()
	cfg.Sketchfab = Sketchfab{Email: "a", Password: "b"}

	cfg.Storage.Provider = "s3"
	assert.ErrorIs(t, cfg.Validate(), ErrUnknownStorageProvider)

	cfg.Storage.Provider = ProviderFilesystem
	assert.ErrorIs(t, cfg.Validate(), ErrFilesystemPublicURLMissing)

	cfg.Storage.Filesystem.PublicURL = "http://localhost:4000/objects"
	assert.NoError(t, cfg.Validate())

	cfg.Browser.InterceptionTimeout = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInterceptionTimeoutInvalid)
}

func TestGenerate(t *testing.T) {
	data, err := Generate()
	require.NoError(t, err)

	var cfg Config
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, DefaultStorageFolder, cfg.Storage.Folder)
	assert.Equal(t, DefaultInterceptionTimeout, cfg.Browser.InterceptionTimeout)
	assert.Empty(t, cfg.Sketchfab.Email)
	assert.Empty(t, cfg.Storage.Cloudinary.APISecret)
	assert.Contains(t, string(data), EnvSketchfabEmail)
}

func TestLoad_GeneratedFileNeedsCredentials(t *testing.T) {
	data, err := Generate()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "mirror.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	_, err = load(path, envFrom(map[string]string{}))
	assert.ErrorIs(t, err, ErrEmailMissing)

	cfg, err := load(path, envFrom(fullEnv()))
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", cfg.Sketchfab.Email)
	assert.Equal(t, "shh", cfg.Storage.Cloudinary.APISecret)
}

func TestRead_SkipsValidation(t *testing.T) {
	cfg, err := read("", envFrom(map[string]string{EnvDataDir: "/var/lib/mirror"}))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/mirror", cfg.DataDir)
	assert.Empty(t, cfg.Sketchfab.Email)
	assert.ErrorIs(t, cfg.Validate(), ErrEmailMissing)
}

func TestLoad_LoginRate(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		expected float64
	}{
		{name: "unset keeps default", yaml: "dataDir: data\n", expected: DefaultLoginRate},
		{name: "zero disables pacing", yaml: "pipeline:\n  loginRate: 0\n", expected: 0},
		{name: "negative falls back to default", yaml: "pipeline:\n  loginRate: -1\n", expected: DefaultLoginRate},
		{name: "explicit rate", yaml: "pipeline:\n  loginRate: 2.5\n", expected: 2.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "mirror.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))

			cfg, err := load(path, envFrom(fullEnv()))
			require.NoError(t, err)
			if cfg.Pipeline.LoginRate != tt.expected {
				t.Errorf("LoginRate = %v, expected %v", cfg.Pipeline.LoginRate, tt.expected)
			}
		})
	}
}
