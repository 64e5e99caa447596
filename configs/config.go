package configs

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/ThierryFotabong/feeya/internal/domain/delivery"
	dominv "github.com/ThierryFotabong/feeya/internal/domain/inventory"
	"github.com/ThierryFotabong/feeya/internal/pkg/money"
)

const envPrefix = "FEEYA_"

type Config struct {
	App struct {
		Name           string        `koanf:"name"`
		Env            string        `koanf:"env"`
		HTTPAddr       string        `koanf:"http_addr"`
		Currency       string        `koanf:"currency"`
		MaxLineQty     int           `koanf:"max_line_qty"`
		RequestTimeout time.Duration `koanf:"request_timeout"`
	} `koanf:"app"`

	Log struct {
		Level      string `koanf:"level"`
		File       string `koanf:"file"`
		MaxSizeMB  int    `koanf:"max_size_mb"`
		MaxBackups int    `koanf:"max_backups"`
		MaxAgeDays int    `koanf:"max_age_days"`
	} `koanf:"log"`

	HTTP struct {
		ReadTimeout     time.Duration `koanf:"read_timeout"`
		WriteTimeout    time.Duration `koanf:"write_timeout"`
		IdleTimeout     time.Duration `koanf:"idle_timeout"`
		ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	} `koanf:"http"`

	MySQL struct {
		DSN             string        `koanf:"dsn"`
		MaxOpenConns    int           `koanf:"max_open_conns"`
		MaxIdleConns    int           `koanf:"max_idle_conns"`
		ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
		AutoMigrate     bool          `koanf:"auto_migrate"`
	} `koanf:"mysql"`

	Redis struct {
		Addr      string        `koanf:"addr"`
		Password  string        `koanf:"password"`
		DB        int           `koanf:"db"`
		LockTTL   time.Duration `koanf:"lock_ttl"`
		StatusTTL time.Duration `koanf:"status_ttl"`
	} `koanf:"redis"`

	Rabbit struct {
		URL      string `koanf:"url"`
		Exchange string `koanf:"exchange"`
	} `koanf:"rabbitmq"`

	Kafka struct {
		Brokers       []string      `koanf:"brokers"`
		GroupID       string        `koanf:"group_id"`
		TopicWebhooks string        `koanf:"topic_webhooks"`
		Attempts      int           `koanf:"attempts"`
		Backoff       time.Duration `koanf:"backoff"`
	} `koanf:"kafka"`

	Stripe struct {
		SecretKey        string        `koanf:"secret_key"`
		WebhookSecret    string        `koanf:"webhook_secret"`
		WebhookTolerance time.Duration `koanf:"webhook_tolerance"`
	} `koanf:"stripe"`

	Geocoder struct {
		BaseURL string        `koanf:"base_url"`
		APIKey  string        `koanf:"api_key"`
		Region  string        `koanf:"region"`
		Timeout time.Duration `koanf:"timeout"`
	} `koanf:"geocoder"`

	Security struct {
		JWTSecret string        `koanf:"jwt_secret"`
		Issuer    string        `koanf:"issuer"`
		Audience  string        `koanf:"audience"`
		Leeway    time.Duration `koanf:"leeway"`
	} `koanf:"security"`

	Delivery struct {
		TimeZone string       `koanf:"time_zone"`
		Zones    []ZoneConfig `koanf:"zones"`
	} `koanf:"delivery"`

	// Catalog seeds the in-memory store when no database is configured.
	Catalog []ProductConfig `koanf:"catalog"`
}

type ZoneConfig struct {
	Name          string       `koanf:"name"`
	PostalCodes   []string     `koanf:"postal_codes"`
	Fee           string       `koanf:"fee"`
	FreeThreshold string       `koanf:"free_threshold"`
	DefaultBand   string       `koanf:"default_band"`
	Bands         []BandConfig `koanf:"bands"`
}

// BandConfig windows are written as local "HH:MM" times.
type BandConfig struct {
	Label string `koanf:"label"`
	From  string `koanf:"from"`
	To    string `koanf:"to"`
}

type ProductConfig struct {
	ID     string `koanf:"id"`
	Name   string `koanf:"name"`
	Size   string `koanf:"size"`
	Price  string `koanf:"price"`
	OnHand int    `koanf:"on_hand"`
}

func Load(pathDir, envName string) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(fmt.Sprintf("%s/base.yaml", pathDir)), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("load base: %w", err)
	}

	// env file is optional for local runs
	if envName != "" {
		_ = k.Load(file.Provider(fmt.Sprintf("%s/%s.yaml", pathDir, envName)), yaml.Parser())
	}

	// e.g. FEEYA_MYSQL__DSN, FEEYA_STRIPE__SECRET_KEY
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	if cfg.App.Env == "" {
		cfg.App.Env = envName
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.App.HTTPAddr == "" {
		return fmt.Errorf("app.http_addr required")
	}
	if len(c.App.Currency) != 3 {
		return fmt.Errorf("app.currency must be an ISO 4217 code, got %q", c.App.Currency)
	}
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwt_secret required")
	}
	if c.Stripe.WebhookSecret == "" {
		return fmt.Errorf("stripe.webhook_secret required")
	}
	if len(c.Delivery.Zones) == 0 {
		return fmt.Errorf("delivery.zones requires at least one zone")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.TopicWebhooks == "" {
		return fmt.Errorf("kafka.topic_webhooks required when brokers are set")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.Zones(); err != nil {
		return err
	}
	if _, err := c.SeedProducts(); err != nil {
		return err
	}
	return nil
}

// Location is the store time zone ETA bands are read in.
func (c Config) Location() (*time.Location, error) {
	if c.Delivery.TimeZone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Delivery.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("delivery.time_zone: %w", err)
	}
	return loc, nil
}

func (c Config) Zones() ([]delivery.Zone, error) {
	zones := make([]delivery.Zone, 0, len(c.Delivery.Zones))
	for _, zc := range c.Delivery.Zones {
		if zc.Name == "" {
			return nil, fmt.Errorf("delivery.zones: name required")
		}
		fee, err := money.Parse(zc.Fee)
		if err != nil {
			return nil, fmt.Errorf("zone %s fee: %w", zc.Name, err)
		}
		free, err := money.Parse(zc.FreeThreshold)
		if err != nil {
			return nil, fmt.Errorf("zone %s free_threshold: %w", zc.Name, err)
		}
		z := delivery.Zone{
			Name:          zc.Name,
			PostalCodes:   zc.PostalCodes,
			Fee:           fee,
			FreeThreshold: free,
			DefaultBand:   zc.DefaultBand,
		}
		for _, bc := range zc.Bands {
			from, err := clock(bc.From)
			if err != nil {
				return nil, fmt.Errorf("zone %s band %s: %w", zc.Name, bc.Label, err)
			}
			to, err := clock(bc.To)
			if err != nil {
				return nil, fmt.Errorf("zone %s band %s: %w", zc.Name, bc.Label, err)
			}
			z.Bands = append(z.Bands, delivery.Band{Label: bc.Label, From: from, To: to})
		}
		zones = append(zones, z)
	}
	return zones, nil
}

func (c Config) SeedProducts() ([]dominv.Product, error) {
	out := make([]dominv.Product, 0, len(c.Catalog))
	for _, pc := range c.Catalog {
		price, err := money.Parse(pc.Price)
		if err != nil {
			return nil, fmt.Errorf("catalog %s price: %w", pc.ID, err)
		}
		out = append(out, dominv.Product{
			ID:        pc.ID,
			Name:      pc.Name,
			Size:      pc.Size,
			UnitPrice: price,
			Available: true,
			OnHand:    pc.OnHand,
		})
	}
	return out, nil
}

// clock parses "HH:MM" into an offset from midnight. "24:00" closes a window at midnight.
func clock(s string) (time.Duration, error) {
	if s == "24:00" {
		return 24 * time.Hour, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("time %q: want HH:MM", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
