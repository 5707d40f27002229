package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/slighter12/go-lib/database/postgres"
)

const (
	defaultPath               = "."
	defaultMaxRequestBodySize = "100KB"
)

type Config struct {
	Env struct {
		Env         string `json:"env" yaml:"env"`
		ServiceName string `json:"serviceName" yaml:"serviceName"`
		Debug       bool   `json:"debug" yaml:"debug"`
		Log         Log    `json:"log" yaml:"log"`
	} `json:"env" yaml:"env"`

	HTTP struct {
		Port               int    `json:"port" yaml:"port"`
		MaxRequestBodySize string `json:"maxRequestBodySize" yaml:"maxRequestBodySize"`
		Timeouts           struct {
			ReadTimeout       time.Duration `json:"readTimeout" yaml:"readTimeout"`
			ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"`
			WriteTimeout      time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
			IdleTimeout       time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
		} `json:"timeouts" yaml:"timeouts"`
	} `json:"http" yaml:"http"`

	Postgres *postgres.DBConn `json:"postgres" yaml:"postgres" mapstructure:"postgres"`

	Redis *RedisConfig `json:"redis" yaml:"redis"`

	SecretKey struct {
		Access  string `json:"access" yaml:"access"`
		Refresh string `json:"refresh" yaml:"refresh"`
	} `json:"secretKey" yaml:"secretKey"`

	GoogleOAuth *GoogleOAuthConfig `json:"googleOAuth" yaml:"googleOAuth"`

	GitHubOAuth *GitHubOAuthConfig `json:"githubOAuth" yaml:"githubOAuth"`

	Auth *AuthConfig `json:"auth" yaml:"auth"`

	OTP *OTPConfig `json:"otp" yaml:"otp"`

	ActionToken *ActionTokenConfig `json:"actionToken" yaml:"actionToken"`

	Mail *MailConfig `json:"mail" yaml:"mail"`

	PasswordStrength *PasswordStrengthConfig `json:"passwordStrength" yaml:"passwordStrength"`
}

// RedisConfig defines the connection settings for the ephemeral store.
type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
	PoolSize int    `json:"poolSize" yaml:"poolSize"`
}

type GoogleOAuthConfig struct {
	ClientID string `json:"clientId" yaml:"clientId"`
	// Note: ClientSecret and RedirectURI are not needed for ID token verification
	// These are only needed for server-side OAuth flows, which we don't use
}

// GitHubOAuthConfig defines the settings for GitHub access-token verification.
type GitHubOAuthConfig struct {
	ClientID string `json:"clientId" yaml:"clientId"`
	APIBase  string `json:"apiBase" yaml:"apiBase"`
}

// AuthConfig defines authentication-related configuration
type AuthConfig struct {
	AccessTokenTTL    time.Duration `json:"accessTokenTtl" yaml:"accessTokenTtl"`
	RefreshTokenTTL   time.Duration `json:"refreshTokenTtl" yaml:"refreshTokenTtl"`
	MaxActiveSessions int           `json:"maxActiveSessions" yaml:"maxActiveSessions"`
	Argon2            Argon2Config  `json:"argon2" yaml:"argon2"`
}

// Argon2Config defines the argon2id cost parameters for password hashing.
type Argon2Config struct {
	MemoryKiB   uint32 `json:"memoryKib" yaml:"memoryKib"`
	Iterations  uint32 `json:"iterations" yaml:"iterations"`
	Parallelism uint8  `json:"parallelism" yaml:"parallelism"`
	SaltLength  uint32 `json:"saltLength" yaml:"saltLength"`
	KeyLength   uint32 `json:"keyLength" yaml:"keyLength"`
}

// OTPConfig defines how signup one-time codes are produced and checked.
type OTPConfig struct {
	// Strategy selects the implementation: "hotp" (stateless counter codes)
	// or "random" (store-backed random codes).
	Strategy string        `json:"strategy" yaml:"strategy"`
	Secret   string        `json:"secret" yaml:"secret"`
	Step     time.Duration `json:"step" yaml:"step"`
	TTL      time.Duration `json:"ttl" yaml:"ttl"`
}

// ActionTokenConfig defines lifetimes for single-use action tokens.
type ActionTokenConfig struct {
	EmailVerifyTTL   time.Duration `json:"emailVerifyTtl" yaml:"emailVerifyTtl"`
	PasswordResetTTL time.Duration `json:"passwordResetTtl" yaml:"passwordResetTtl"`
	AccountDeleteTTL time.Duration `json:"accountDeleteTtl" yaml:"accountDeleteTtl"`
}

// MailConfig defines outbound mail delivery settings.
type MailConfig struct {
	// Provider selects the implementation: "mailgun" or "dev" (log-only).
	Provider    string `json:"provider" yaml:"provider"`
	Domain      string `json:"domain" yaml:"domain"`
	APIKey      string `json:"apiKey" yaml:"apiKey"`
	APIBase     string `json:"apiBase" yaml:"apiBase"`
	From        string `json:"from" yaml:"from"`
	FrontendURL string `json:"frontendUrl" yaml:"frontendUrl"`
}

// PasswordStrengthConfig defines password strength requirements
type PasswordStrengthConfig struct {
	MinLength        int  `json:"minLength" yaml:"minLength"`
	RequireUppercase bool `json:"requireUppercase" yaml:"requireUppercase"`
	RequireLowercase bool `json:"requireLowercase" yaml:"requireLowercase"`
	RequireNumbers   bool `json:"requireNumbers" yaml:"requireNumbers"`
	RequireSpecial   bool `json:"requireSpecial" yaml:"requireSpecial"`
	MaxLength        int  `json:"maxLength" yaml:"maxLength"`
}

type Log struct {
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Level  string `json:"level" yaml:"level"`
}

// LoadWithEnv loads .yaml files through koanf.
func LoadWithEnv[T any](currEnv string, configPath ...string) (*T, error) {
	cfg := new(T)
	koanfInstance := koanf.New(".")

	// Build list of paths to search for config file
	searchPaths := []string{defaultPath}
	if len(configPath) != 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "os.Getwd")
		}
		for _, path := range configPath {
			abs := filepath.Join(pwd, path)
			searchPaths = append(searchPaths, abs)
		}
	}

	// Try to find and load the config file
	var configFile string
	var found bool
	for _, path := range searchPaths {
		candidate := filepath.Join(path, currEnv+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
			found = true

			break
		}
	}

	if !found {
		return nil, errors.Errorf("config file %s.yaml not found in any search path", currEnv)
	}

	// Load YAML config file
	if err := koanfInstance.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read %s config failed", currEnv)
	}

	existingConfigMap := koanfInstance.Raw()

	// Load environment variables
	if err := koanfInstance.Load(env.Provider(".", env.Opt{
		TransformFunc: func(k, v string) (string, any) {
			// Convert ENV_VAR_NAME to path and align each segment with existing YAML keys.
			// Example: POSTGRES_SSLMODE -> postgres.sslMode (not postgres.sslmode)
			key := canonicalizeEnvKey(k, existingConfigMap)

			return key, v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	// Unmarshal into the config struct (case-insensitive to match env vars)
	if err := koanfInstance.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				// Case-insensitive matching for env var overrides
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s config failed", currEnv)
	}

	return cfg, nil
}

func New() (*Config, error) {
	cfg, err := LoadWithEnv[Config]("config", "config", "../config", "../../config")
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.HTTP.MaxRequestBodySize) == "" {
		cfg.HTTP.MaxRequestBodySize = defaultMaxRequestBodySize
	}

	applyDefaults(cfg)

	// Build replicas from environment variables (POSTGRES_REPLICAS_0_HOST, POSTGRES_REPLICAS_0_PORT, etc.)
	cfg.Postgres.Replicas = buildReplicasFromEnv()

	return cfg, nil
}

// applyDefaults fills the zero values that have sensible production defaults.
// Secrets never default; missing secrets surface as validation errors downstream.
func applyDefaults(cfg *Config) {
	if cfg.Auth == nil {
		cfg.Auth = &AuthConfig{}
	}
	if cfg.Auth.AccessTokenTTL <= 0 {
		cfg.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if cfg.Auth.RefreshTokenTTL <= 0 {
		cfg.Auth.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if cfg.Auth.MaxActiveSessions <= 0 {
		cfg.Auth.MaxActiveSessions = 5
	}
	if cfg.Auth.Argon2.MemoryKiB == 0 {
		cfg.Auth.Argon2.MemoryKiB = 64 * 1024
	}
	if cfg.Auth.Argon2.Iterations == 0 {
		cfg.Auth.Argon2.Iterations = 1
	}
	if cfg.Auth.Argon2.Parallelism == 0 {
		cfg.Auth.Argon2.Parallelism = 4
	}
	if cfg.Auth.Argon2.SaltLength == 0 {
		cfg.Auth.Argon2.SaltLength = 16
	}
	if cfg.Auth.Argon2.KeyLength == 0 {
		cfg.Auth.Argon2.KeyLength = 32
	}

	if cfg.OTP == nil {
		cfg.OTP = &OTPConfig{}
	}
	if cfg.OTP.Strategy == "" {
		cfg.OTP.Strategy = "random"
	}
	if cfg.OTP.Step <= 0 {
		cfg.OTP.Step = 5 * time.Minute
	}
	if cfg.OTP.TTL <= 0 {
		cfg.OTP.TTL = 5 * time.Minute
	}

	if cfg.ActionToken == nil {
		cfg.ActionToken = &ActionTokenConfig{}
	}
	if cfg.ActionToken.EmailVerifyTTL <= 0 {
		cfg.ActionToken.EmailVerifyTTL = 24 * time.Hour
	}
	if cfg.ActionToken.PasswordResetTTL <= 0 {
		cfg.ActionToken.PasswordResetTTL = time.Hour
	}
	if cfg.ActionToken.AccountDeleteTTL <= 0 {
		cfg.ActionToken.AccountDeleteTTL = time.Hour
	}
}

func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}

	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (matched string, next map[string]any, ok bool) {
	if len(current) == 0 {
		return "", nil, false
	}

	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}

		child, _ := value.(map[string]any)

		return key, child, true
	}

	return "", nil, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}

// buildReplicasFromEnv builds the replicas slice from environment variables.
// Environment variable format: POSTGRES_REPLICAS_{index}_{field}
// Example: POSTGRES_REPLICAS_0_HOST, POSTGRES_REPLICAS_0_PORT, POSTGRES_REPLICAS_0_USERNAME, POSTGRES_REPLICAS_0_PASSWORD
func buildReplicasFromEnv() []postgres.ConnectionConfig {
	var replicas []postgres.ConnectionConfig

	for i := 0; ; i++ {
		prefix := "POSTGRES_REPLICAS_" + strconv.Itoa(i) + "_"

		host := os.Getenv(prefix + "HOST")
		port := os.Getenv(prefix + "PORT")
		if host == "" || port == "" {
			// No more replicas or incomplete configuration.
			break
		}

		replica := postgres.ConnectionConfig{
			Host:     host,
			Port:     port,
			UserName: os.Getenv(prefix + "USERNAME"),
			Password: os.Getenv(prefix + "PASSWORD"),
		}

		replicas = append(replicas, replica)
	}

	return replicas
}
