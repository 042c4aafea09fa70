package config

import (
	"fmt"
	"log"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"

	"github.com/arnac-io/paygate/internal/g"
	"github.com/arnac-io/paygate/pkg/core"
)

type Config struct {
	API struct {
		Port          int    `env:"PORT" envDefault:"8080"`
		PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
		// PayRateLimit is the number of /pay requests allowed per second, 0 disables the limit.
		PayRateLimit uint64 `env:"PAY_RATE_LIMIT" envDefault:"50"`
	}
	App struct {
		LogLevel    string `env:"LOG_LEVEL" envDefault:"INFO"`
		MetricsPort int    `env:"METRICS_PORT" envDefault:"9010"`
		SentryDSN   string `env:"SENTRY_DSN"`
	}
	Store struct {
		Driver               string `env:"DB_DRIVER" envDefault:"memory"`
		DatabaseURL          string `env:"DATABASE_URL"`
		PaidInvoiceCacheSize int    `env:"PAID_INVOICE_CACHE_SIZE" envDefault:"10000"`
	}
	Facilitator struct {
		URL               string        `env:"FACILITATOR_URL"`
		APIKey            string        `env:"FACILITATOR_API_KEY"`
		Timeout           time.Duration `env:"FACILITATOR_TIMEOUT" envDefault:"30s"`
		Network           string        `env:"PAYMENT_NETWORK" envDefault:"ethereum"`
		RejectionCacheTTL time.Duration `env:"REJECTION_CACHE_TTL" envDefault:"1m"`
	}
	Asset struct {
		Symbol    string               `env:"ASSET_SYMBOL" envDefault:"MNEE"`
		Address   string               `env:"ASSET_ADDRESS" envDefault:"0x8ccedbAe4916b79da7F3F612EfB2EB93A2bFD6cF"`
		Decimals  int32                `env:"ASSET_DECIMALS" envDefault:"18"`
		Name      string               `env:"ASSET_SIGNATURE_NAME" envDefault:"MNEE"`
		Version   string               `env:"ASSET_SIGNATURE_VERSION" envDefault:"1"`
		Scheme    core.SignatureScheme `env:"ASSET_SIGNATURE_SCHEME" envDefault:"Permit"`
		File      string               `env:"ASSETS_FILE"`
		Available core.Assets
	}
	Extraction struct {
		CredentialProbes probeList `env:"PAYER_CREDENTIAL_PROBES"`
		ReceiptProbes    probeList `env:"PAYER_RECEIPT_PROBES"`
	}
}

// probeList is a comma separated list of dotted JSON paths.
type probeList []string

var drivers = []string{"memory", "sqlite3", "postgres"}

func Load() Config {
	c, err := Parse()
	if err != nil {
		log.Panicf("[‼️  Config parsing failed] %+v\n", err)
	}
	return c
}

// Parse reads the configuration from the environment.
func Parse() (Config, error) {
	var c Config
	if err := env.ParseWithFuncs(&c, map[reflect.Type]env.ParserFunc{
		reflect.TypeOf(core.SignatureScheme("")): func(v string) (interface{}, error) {
			scheme := core.SignatureScheme(v)
			if !slices.Contains(core.SignatureSchemes, scheme) {
				return nil, fmt.Errorf("unknown signature scheme %q (valid: %v)", v, strings.Join(g.ToStrings(core.SignatureSchemes), ", "))
			}
			return scheme, nil
		},
		reflect.TypeOf(probeList{}): func(v string) (interface{}, error) {
			var probes probeList
			for _, s := range strings.Split(v, ",") {
				if s = strings.TrimSpace(s); s != "" {
					probes = append(probes, s)
				}
			}
			return probes, nil
		}}); err != nil {
		return Config{}, err
	}
	if !slices.Contains(drivers, c.Store.Driver) {
		return Config{}, fmt.Errorf("unknown DB_DRIVER %q", c.Store.Driver)
	}
	if c.Store.Driver != "memory" && c.Store.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required for %v", c.Store.Driver)
	}
	c.API.PublicBaseURL = strings.TrimRight(c.API.PublicBaseURL, "/")
	c.Asset.Available = core.Assets{
		c.Asset.Symbol: {
			Symbol:   c.Asset.Symbol,
			Address:  c.Asset.Address,
			Decimals: c.Asset.Decimals,
			Network:  c.Facilitator.Network,
			Domain: core.SignatureDomain{
				Name:    c.Asset.Name,
				Version: c.Asset.Version,
				Scheme:  c.Asset.Scheme,
			},
		},
	}
	if c.Asset.File != "" {
		assets, err := LoadAssets(c.Asset.File, c.Facilitator.Network)
		if err != nil {
			return Config{}, err
		}
		for symbol, asset := range assets {
			c.Asset.Available[symbol] = asset
		}
	}
	return c, nil
}

type assetsFile struct {
	Assets []core.Asset `yaml:"assets"`
}

// LoadAssets reads a YAML registry of assets. Assets without a network get defaultNetwork.
func LoadAssets(path string, defaultNetwork string) (core.Assets, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseAssets(content, defaultNetwork)
}

func parseAssets(content []byte, defaultNetwork string) (core.Assets, error) {
	var file assetsFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("failed to parse assets: %w", err)
	}
	assets := make(core.Assets, len(file.Assets))
	for _, asset := range file.Assets {
		if asset.Symbol == "" || asset.Address == "" {
			return nil, fmt.Errorf("asset symbol and address are required")
		}
		if asset.Domain.Scheme == "" {
			asset.Domain.Scheme = core.SchemePermit
		}
		if !slices.Contains(core.SignatureSchemes, asset.Domain.Scheme) {
			return nil, fmt.Errorf("asset %v: unknown signature scheme %q", asset.Symbol, asset.Domain.Scheme)
		}
		if asset.Network == "" {
			asset.Network = defaultNetwork
		}
		assets[asset.Symbol] = asset
	}
	return assets, nil
}
