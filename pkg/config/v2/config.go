package config

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/rs/zerolog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/mitchellh/mapstructure"

	"github.com/spf13/viper"
)

const (
	defaultExtension = "yaml"
	defaultTagName   = "yaml"

	AppEnvLocal      = "local"
	AppEnvProduction = "production"

	GoogleIssuer = "https://accounts.google.com"
)

type Binder interface {
	Bind(v *viper.Viper) error
}

type Loader interface {
	Load(name, path, envPrefix string, binder Binder) (Config, error)
}

type Config struct {
	Server  Server  `yaml:"server"`
	Oauth   Oauth   `yaml:"oauth"`
	Session Session `yaml:"session"`
	Cors    Cors    `yaml:"cors"`

	AppEnv   string `yaml:"app_env"`
	LogLevel string `yaml:"log_level"`
	Debug    bool   `yaml:"debug"`
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Server, validation.Required),
		validation.Field(&c.Oauth, validation.Required),
		validation.Field(&c.Session, validation.Required),
		validation.Field(&c.Cors),
		validation.Field(&c.AppEnv, validation.Required),
		validation.Field(&c.LogLevel, validation.Required, validation.By(validLogLevel)),
	)
}

// IsProduction reports whether the process runs with APP_ENV=production.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, AppEnvProduction)
}

func validLogLevel(value interface{}) error {
	s, _ := value.(string)

	_, err := zerolog.ParseLevel(s)
	if err != nil {
		return errors.New("must be a valid log level")
	}

	return nil
}

type Server struct {
	Address string `yaml:"address"`
	Port    string `yaml:"port"`
	// BaseURL overrides the scheme and host derived from incoming requests
	// when building the OAuth callback URL.
	BaseURL string `yaml:"base_url"`
}

func (s Server) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Address, validation.Required, is.IP),
		validation.Field(&s.Port, validation.Required, is.Port),
		validation.Field(&s.BaseURL, is.URL),
	)
}

func (s Server) ListenAddress() string {
	return net.JoinHostPort(s.Address, s.Port)
}

type Oauth struct {
	ClientID           string   `yaml:"client_id"`
	ClientSecret       string   `yaml:"client_secret"`
	Issuer             string   `yaml:"issuer"`
	Scopes             []string `yaml:"scopes"`
	HTTPTimeoutSeconds int      `yaml:"http_timeout_seconds"`
}

func (o Oauth) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.ClientID, validation.Required),
		validation.Field(&o.ClientSecret, validation.Required),
		validation.Field(&o.Issuer, validation.Required, is.URL),
		validation.Field(&o.Scopes, validation.Required),
		validation.Field(&o.HTTPTimeoutSeconds, validation.Required, validation.Min(1)),
	)
}

func (o Oauth) HTTPTimeout() time.Duration {
	return time.Duration(o.HTTPTimeoutSeconds) * time.Second
}

type Session struct {
	SecretKey string         `yaml:"secret_key"`
	Cookie    CookieSettings `yaml:"cookie"`
}

func (s Session) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.SecretKey, validation.Required),
		validation.Field(&s.Cookie, validation.Required),
	)
}

type CookieSettings struct {
	Name     string `yaml:"name"`
	MaxAge   int    `yaml:"max_age"`
	Path     string `yaml:"path"`
	Domain   string `yaml:"domain"`
	SameSite string `yaml:"same_site"`
	Secure   bool   `yaml:"secure"`
	HttpOnly bool   `yaml:"http_only"`
}

func (c CookieSettings) GetSameSite() http.SameSite {
	switch c.SameSite {
	case "Strict":
		return http.SameSiteStrictMode
	case "Lax":
		return http.SameSiteLaxMode
	case "None":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}

func (c CookieSettings) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.MaxAge, validation.Required, validation.Min(1)),
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Domain, is.Host),
		// Valid SameSite values:
		// - https://developer.mozilla.org/en-US/docs/Web/HTTP/Headers/Set-Cookie#samesitesamesite-value
		validation.Field(&c.SameSite, validation.Required, validation.In("Strict", "Lax", "None")),
	)
}

type Cors struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

func (c Cors) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.AllowedOrigins, validation.Each(validation.Required, is.URL)),
	)
}

type FileParts struct {
	FileName string
	Path     string
}

func ProcessConfigPath(configFile string) (FileParts, error) {
	absolutePath, err := filepath.Abs(configFile)
	if err != nil {
		return FileParts{}, fmt.Errorf("convert to absolute path: %w", err)
	}

	fileName := filepath.Base(absolutePath)
	path := filepath.Dir(absolutePath)
	extension := filepath.Ext(fileName)

	if strings.ReplaceAll(strings.ToLower(extension), ".", "") != defaultExtension {
		return FileParts{}, fmt.Errorf("config file must have extension %s, got: %s", defaultExtension, extension)
	}

	return FileParts{
		FileName: fileName[:len(fileName)-len(extension)],
		Path:     path,
	}, nil
}

// SetDefaults registers the values used when neither the config file nor the
// environment provides a key. AutomaticEnv only looks up keys viper already
// knows about, so every key in Config needs an entry here.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app_env", AppEnvLocal)
	v.SetDefault("log_level", "info")
	v.SetDefault("debug", false)
	v.SetDefault("server.address", "127.0.0.1")
	v.SetDefault("server.port", "3000")
	v.SetDefault("server.base_url", "")
	v.SetDefault("oauth.client_id", "")
	v.SetDefault("oauth.client_secret", "")
	v.SetDefault("oauth.issuer", GoogleIssuer)
	v.SetDefault("oauth.scopes", []string{"openid", "email", "profile"})
	v.SetDefault("oauth.http_timeout_seconds", 10)
	v.SetDefault("session.secret_key", "")
	v.SetDefault("session.cookie.name", "session")
	v.SetDefault("session.cookie.max_age", 14*24*60*60)
	v.SetDefault("session.cookie.path", "/")
	v.SetDefault("session.cookie.domain", "")
	v.SetDefault("session.cookie.same_site", "Lax")
	v.SetDefault("session.cookie.secure", false)
	v.SetDefault("session.cookie.http_only", true)
	v.SetDefault("cors.allowed_origins", []string{
		"http://localhost:3000",
		"https://keys2text-chat.onrender.com",
	})
}

func NewFileSystemLoader() *FileSystemLoader {
	return &FileSystemLoader{}
}

type FileSystemLoader struct{}

// Load reads the named yaml file from path, falling back to defaults and
// environment variables when the file does not exist.
func (fs *FileSystemLoader) Load(name, path, envPrefix string, b Binder) (Config, error) {
	v := viper.New()

	v.AddConfigPath(path)
	v.SetConfigName(name)
	v.SetConfigType(defaultExtension)

	SetDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // So that env vars are translated properly
	v.AutomaticEnv()

	if b != nil {
		err := b.Bind(v)
		if err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix(envPrefix)

	err := v.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var config Config

	err = v.Unmarshal(&config, func(cfg *mapstructure.DecoderConfig) {
		cfg.TagName = defaultTagName // We use yaml tags in the config structs so we can marshal to yaml
	})
	if err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	return config, nil
}

type EnvBinder struct {
	binders map[string]string
}

func (e *EnvBinder) Bind(v *viper.Viper) error {
	for envVar, key := range e.binders {
		err := v.BindEnv(key, envVar)
		if err != nil {
			return fmt.Errorf("bind env var %s to key %s: %w", envVar, key, err)
		}
	}

	return nil
}

func NewEnvBinder(binders map[string]string) *EnvBinder {
	return &EnvBinder{
		binders: binders,
	}
}

// NewDefaultEnvBinder maps the plain environment variables the service is
// deployed with onto config keys.
func NewDefaultEnvBinder() *EnvBinder {
	return NewEnvBinder(map[string]string{
		"APP_ENV":              "app_env",
		"LOG_LEVEL":            "log_level",
		"SECRET_KEY":           "session.secret_key",
		"GOOGLE_CLIENT_ID":     "oauth.client_id",
		"GOOGLE_CLIENT_SECRET": "oauth.client_secret",
		"PORT":                 "server.port",
		"BASE_URL":             "server.base_url",
	})
}
