package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/imdario/mergo"

	"github.com/tiplinehq/tipline/pkg/common/enum"
)

var validate = validator.New()

type Config struct {
	Environment string     `yaml:"environment" validate:"required,oneof=production development"`
	Social      SocialCfg  `yaml:"social"      validate:"required"`
	Chain       ChainCfg   `yaml:"chain"       validate:"required"`
	Bot         BotCfg     `yaml:"bot"         validate:"required"`
	DB          DBCfg      `yaml:"db"          validate:"required"`
	NATS        NATSCfg    `yaml:"nats"        validate:"required"`
	KVStore     KVStoreCfg `yaml:"kvstore"     validate:"required"`
	Redis       RedisCfg   `yaml:"redis"`
	Pollers     PollersCfg `yaml:"pollers"     validate:"required"`
	Server      ServerCfg  `yaml:"server"`
}

type SocialCfg struct {
	BaseURL     string        `yaml:"base_url"     validate:"required,url"`
	BearerToken string        `yaml:"bearer_token" validate:"required"`
	Timeout     time.Duration `yaml:"timeout"`
	PageSize    int           `yaml:"page_size"`
}

type ChainCfg struct {
	Name           string        `yaml:"name"            validate:"required"`
	AssetSymbol    string        `yaml:"asset_symbol"    validate:"required"`
	AssetDecimals  int32         `yaml:"asset_decimals"  validate:"required,min=0,max=18"`
	WalletURL      string        `yaml:"wallet_url"      validate:"required,url"`
	WalletAPIKey   string        `yaml:"wallet_api_key"`
	SourceAddress  string        `yaml:"source_address"  validate:"required"`
	RouterAddress  string        `yaml:"router_address"`
	TreasuryAddr   string        `yaml:"treasury_address" validate:"required"`
	FeeBps         int64         `yaml:"fee_bps"         validate:"min=0,max=10000"`
	ConfirmTimeout time.Duration `yaml:"confirm_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type BotCfg struct {
	// Handles the bot posts under; excluded from parsed recipients.
	Handles   []string `yaml:"handles"    validate:"required,min=1"`
	MaxAmount string   `yaml:"max_amount" validate:"required"`
	Keywords  []string `yaml:"keywords"   validate:"required,min=1"`
}

type DBCfg struct {
	Type string `yaml:"type" validate:"required,oneof=postgres"`
	URL  string `yaml:"url"  validate:"required"`
}

type NATSCfg struct {
	URL           string `yaml:"url"            validate:"required"`
	SubjectPrefix string `yaml:"subject_prefix" validate:"required"`
}

type KVStoreCfg struct {
	Type   enum.KVStoreType `yaml:"type" validate:"required,oneof=badger consul"`
	Badger BadgerKVCfg      `yaml:"badger"`
	Consul ConsulKVCfg      `yaml:"consul"`
}

type BadgerKVCfg struct {
	Directory string `yaml:"directory"`
	Prefix    string `yaml:"prefix"`
}

type ConsulKVCfg struct {
	Scheme   string      `yaml:"scheme"`
	Address  string      `yaml:"address"`
	Folder   string      `yaml:"folder"`
	Token    string      `yaml:"token"`
	HttpAuth HttpAuthCfg `yaml:"http_auth"`
}

type HttpAuthCfg struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type RedisCfg struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

type PollersCfg struct {
	Defaults PollerItem `yaml:"defaults"`
	Command  PollerItem `yaml:"command"`
	Campaign PollerItem `yaml:"campaign"`
}

type PollerItem struct {
	Enabled      bool          `yaml:"enabled"`
	PollInterval time.Duration `yaml:"poll_interval"`
	SearchQuery  string        `yaml:"search_query"`
	BatchSize    int           `yaml:"batch_size"`
}

type ServerCfg struct {
	ListenAddr string        `yaml:"listen_addr"`
	MaxUptime  time.Duration `yaml:"max_uptime"`
}

func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}

	// merge shared defaults into each poller
	if err := mergo.Merge(&cfg.Pollers.Command, cfg.Pollers.Defaults); err != nil {
		return cfg, err
	}
	if err := mergo.Merge(&cfg.Pollers.Campaign, cfg.Pollers.Defaults); err != nil {
		return cfg, err
	}

	applyFallbacks(&cfg)

	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func applyFallbacks(cfg *Config) {
	if cfg.Social.Timeout == 0 {
		cfg.Social.Timeout = 15 * time.Second
	}
	if cfg.Social.PageSize == 0 {
		cfg.Social.PageSize = 50
	}
	if cfg.Chain.ConfirmTimeout == 0 {
		cfg.Chain.ConfirmTimeout = 60 * time.Second
	}
	if cfg.Chain.RequestTimeout == 0 {
		cfg.Chain.RequestTimeout = 30 * time.Second
	}
	if cfg.Pollers.Command.PollInterval == 0 {
		cfg.Pollers.Command.PollInterval = time.Minute
	}
	if cfg.Pollers.Campaign.PollInterval == 0 {
		cfg.Pollers.Campaign.PollInterval = time.Minute
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
}
