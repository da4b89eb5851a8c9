package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultSiteOrigin is the production marketing site. It doubles as the CORS
// allow-origin and the fallback origin recorded for payloads that omit one.
const DefaultSiteOrigin = "https://www.storyproof.io"

// Config captures all runtime configuration for the lead relay.
type Config struct {
	App   AppConfig
	Graph GraphConfig
	Mail  MailConfig
	Relay RelayConfig
}

// AppConfig contains generic application level settings.
type AppConfig struct {
	Env      string
	Port     int
	LogLevel string
}

// GraphConfig holds the OAuth client-credentials used against the Microsoft
// identity platform, plus optional endpoint overrides used by tests and the
// smoke utility.
type GraphConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	TokenBaseURL string
	APIBaseURL   string
}

// MailConfig describes mail routing: the mailbox the notification is sent
// from and the address that receives it.
type MailConfig struct {
	SenderMailbox string
	NotifyAddress string
}

// RelayConfig controls the HTTP surface of the relay.
type RelayConfig struct {
	AllowedOrigin     string
	DefaultSiteOrigin string
	DefaultFormName   string
	StrictParsing     bool
}

// Load reads environment variables, applies defaults, validates required
// values and returns a populated Config instance.
func Load() (*Config, error) {
	_ = godotenv.Load()

	ldr := &envLoader{}

	cfg := &Config{}
	cfg.App.Env = ldr.getString("APP_ENV", "development", false)
	cfg.App.Port = ldr.getInt("APP_PORT", 8787, false)
	cfg.App.LogLevel = ldr.getString("LOG_LEVEL", "info", false)

	cfg.Graph.TenantID = ldr.getString("GRAPH_TENANT_ID", "", true)
	cfg.Graph.ClientID = ldr.getString("GRAPH_CLIENT_ID", "", true)
	cfg.Graph.ClientSecret = ldr.getString("GRAPH_CLIENT_SECRET", "", true)
	cfg.Graph.TokenBaseURL = ldr.getString("GRAPH_TOKEN_BASE_URL", "", false)
	cfg.Graph.APIBaseURL = ldr.getString("GRAPH_API_BASE_URL", "", false)

	cfg.Mail.SenderMailbox = ldr.getString("MAIL_SENDER_MAILBOX", "", true)
	cfg.Mail.NotifyAddress = ldr.getString("MAIL_NOTIFY_ADDRESS", "", true)

	cfg.Relay.AllowedOrigin = ldr.getString("ALLOWED_ORIGIN", DefaultSiteOrigin, false)
	cfg.Relay.DefaultSiteOrigin = ldr.getString("DEFAULT_SITE_ORIGIN", DefaultSiteOrigin, false)
	cfg.Relay.DefaultFormName = ldr.getString("DEFAULT_FORM_NAME", "contact", false)
	cfg.Relay.StrictParsing = ldr.getBool("STRICT_PARSING", false, false)

	if err := ldr.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

type envLoader struct {
	errs []string
}

func (l *envLoader) validate() error {
	if len(l.errs) == 0 {
		return nil
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(l.errs, "; "))
}

func (l *envLoader) getString(key, def string, required bool) string {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		return val
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getInt(key string, def int, required bool) int {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		i, err := strconv.Atoi(val)
		if err != nil {
			l.addError(fmt.Sprintf("%s must be a valid integer", key))
			return def
		}
		return i
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getBool(key string, def bool, required bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		parsed, err := strconv.ParseBool(val)
		if err != nil {
			l.addError(fmt.Sprintf("%s must be a valid boolean", key))
			return def
		}
		return parsed
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) addError(err string) {
	l.errs = append(l.errs, err)
}
