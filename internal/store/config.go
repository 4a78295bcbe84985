package store

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"p2p-ad-bot/internal/types"
)

const (
	ModeLive   = "LIVE"
	ModeDryRun = "DRY_RUN"
)

// scalar keeps a YAML scalar verbatim whatever its resolved type, so that
// "max", 100 and "100.5" all survive decoding unchanged.
type scalar string

func (s *scalar) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a scalar value", n.Line)
	}
	if n.Tag == "!!null" {
		*s = ""
		return nil
	}
	*s = scalar(strings.TrimSpace(n.Value))
	return nil
}

type BybitConfig struct {
	APIKey             string `yaml:"api_key"`
	APISecret          string `yaml:"api_secret"`
	Testnet            bool   `yaml:"testnet"`
	BaseURL            string `yaml:"base_url"`
	RecvWindowMs       int    `yaml:"recv_window_ms"`
	TimeoutSeconds     int    `yaml:"timeout_seconds"`
	RateLimitPerSecond int    `yaml:"rate_limit_per_second"`
	AccountType        string `yaml:"account_type"`
	Coin               string `yaml:"coin"`
}

type TelegramConfig struct {
	Token          string  `yaml:"token"`
	AllowedChatIDs []int64 `yaml:"allowed_chat_ids"`
}

type FiltersConfig struct {
	PaymentMethods  []string `yaml:"payment_methods"`
	MinBalance      scalar   `yaml:"min_balance"`
	MinLimit        scalar   `yaml:"min_limit"`
	MaxLimit        scalar   `yaml:"max_limit"`
	MinRegisterDays int      `yaml:"min_register_days"`
	MinOrders       int      `yaml:"min_orders"`
	Nicknames       []string `yaml:"nicknames"`
}

type PricingConfig struct {
	FixedPrice    scalar        `yaml:"fixed_price"`
	FallbackPrice scalar        `yaml:"fallback_price"`
	MinPrice      scalar        `yaml:"min_price"`
	MaxPrice      scalar        `yaml:"max_price"`
	Filters       FiltersConfig `yaml:"filters"`
}

type AdConfig struct {
	Tag            string   `yaml:"tag"`
	Type           string   `yaml:"type"`
	FixedPrice     scalar   `yaml:"fixed_price"`
	Balance        scalar   `yaml:"balance"`
	Quantity       scalar   `yaml:"quantity"`
	MinLimit       scalar   `yaml:"min_limit"`
	MaxLimit       scalar   `yaml:"max_limit"`
	PaymentMethods []string `yaml:"payment_methods"`
	Remark         string   `yaml:"remark"`

	// Older documents used these names
	MinAmount  scalar   `yaml:"min_amount"`
	MaxAmount  scalar   `yaml:"max_amount"`
	PaymentIDs []string `yaml:"payment_ids"`
}

type Config struct {
	Mode           string                   `yaml:"mode"`
	UpdateInterval int                      `yaml:"update_interval"`
	MetricsAddr    string                   `yaml:"metrics_addr"`
	Bybit          BybitConfig              `yaml:"bybit"`
	Telegram       TelegramConfig           `yaml:"telegram"`
	Pricing        map[string]PricingConfig `yaml:"pricing"`
	Ads            []AdConfig               `yaml:"ads"`

	// Flat credentials from the first config layout
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	Testnet   bool   `yaml:"testnet"`
}

// LoadConfig reads, expands and validates a configuration file.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &types.ConfigError{Reason: err.Error()}
	}
	return Parse(b)
}

// Parse decodes a configuration document. ${VAR} references are expanded
// from the environment first.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(b))), &c); err != nil {
		return nil, &types.ConfigError{Reason: err.Error()}
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeLive
	}
	c.Mode = strings.ToUpper(c.Mode)
	if c.UpdateInterval == 0 {
		c.UpdateInterval = 60
	}

	// Backward compatibility: flat credentials fill the bybit section
	if c.Bybit.APIKey == "" && c.APIKey != "" {
		c.Bybit.APIKey = c.APIKey
	}
	if c.Bybit.APISecret == "" && c.APISecret != "" {
		c.Bybit.APISecret = c.APISecret
	}
	if c.Testnet {
		c.Bybit.Testnet = true
	}

	if c.Bybit.RecvWindowMs == 0 {
		c.Bybit.RecvWindowMs = 5000
	}
	if c.Bybit.TimeoutSeconds == 0 {
		c.Bybit.TimeoutSeconds = 10
	}
	if c.Bybit.AccountType == "" {
		c.Bybit.AccountType = "UNIFIED"
	}
	if c.Bybit.Coin == "" {
		c.Bybit.Coin = "USDT"
	}
}

func (c *Config) Validate() error {
	if c.Mode != ModeLive && c.Mode != ModeDryRun {
		return &types.ConfigError{Field: "mode", Reason: fmt.Sprintf("invalid mode '%s': must be 'LIVE' or 'DRY_RUN'", c.Mode)}
	}
	if c.Bybit.APIKey == "" || c.Bybit.APISecret == "" {
		return &types.ConfigError{Field: "bybit", Reason: "api_key and api_secret are required"}
	}
	if c.UpdateInterval < 0 {
		return &types.ConfigError{Field: "update_interval", Reason: fmt.Sprintf("must be positive, got %d", c.UpdateInterval)}
	}
	for side := range c.Pricing {
		if _, err := types.ParseSide(side); err != nil {
			return &types.ConfigError{Field: "pricing", Reason: err.Error()}
		}
	}
	for i, ad := range c.Ads {
		if strings.TrimSpace(ad.Tag) == "" {
			return &types.ConfigError{Field: fmt.Sprintf("ads[%d].tag", i), Reason: "must not be empty"}
		}
		if _, err := types.ParseSide(ad.Type); err != nil {
			return &types.ConfigError{Field: fmt.Sprintf("ads[%d].type", i), Reason: err.Error()}
		}
	}

	// Numeric fields are checked by building the specs once
	specs, err := c.OfferSpecs()
	if err != nil {
		return err
	}
	for i, sp := range specs {
		if !sp.MaxLimit.IsZero() && sp.MinLimit.GreaterThan(sp.MaxLimit) {
			return &types.ConfigError{
				Field:  fmt.Sprintf("ads[%d]", i),
				Reason: fmt.Sprintf("min_limit %s exceeds max_limit %s", sp.MinLimit, sp.MaxLimit),
			}
		}
	}
	return nil
}

// Interval is the poll period.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.UpdateInterval) * time.Second
}

// OfferSpecs builds the immutable spec snapshot declared by the document.
// The ad's own fixed_price overrides the side-level pricing rule.
func (c *Config) OfferSpecs() ([]types.OfferSpec, error) {
	rules := make(map[types.Side]types.PricingRule, len(c.Pricing))
	for key, pc := range c.Pricing {
		side, err := types.ParseSide(key)
		if err != nil {
			return nil, &types.ConfigError{Field: "pricing", Reason: err.Error()}
		}
		rule, err := pc.rule("pricing." + strings.ToUpper(key))
		if err != nil {
			return nil, err
		}
		rules[side] = rule
	}

	specs := make([]types.OfferSpec, 0, len(c.Ads))
	for i, ad := range c.Ads {
		field := fmt.Sprintf("ads[%d]", i)
		side, err := types.ParseSide(ad.Type)
		if err != nil {
			return nil, &types.ConfigError{Field: field + ".type", Reason: err.Error()}
		}

		rule := rules[side]
		fixed, err := optionalDecimal(field+".fixed_price", ad.FixedPrice)
		if err != nil {
			return nil, err
		}
		if fixed != nil {
			rule.FixedPrice = fixed
		}

		minLimit, err := requiredDecimal(field+".min_limit", firstNonEmpty(ad.MinLimit, ad.MinAmount))
		if err != nil {
			return nil, err
		}
		maxLimit, err := requiredDecimal(field+".max_limit", firstNonEmpty(ad.MaxLimit, ad.MaxAmount))
		if err != nil {
			return nil, err
		}

		payments := ad.PaymentMethods
		if len(payments) == 0 {
			payments = ad.PaymentIDs
		}

		specs = append(specs, types.OfferSpec{
			Tag:          ad.Tag,
			Side:         side,
			PricingRule:  rule,
			QuantityRule: types.QuantityRule{Raw: string(firstNonEmpty(ad.Balance, ad.Quantity))},
			MinLimit:     minLimit,
			MaxLimit:     maxLimit,
			PaymentIDs:   append([]string(nil), payments...),
			Remark:       ad.Remark,
		})
	}
	return specs, nil
}

func (pc PricingConfig) rule(field string) (types.PricingRule, error) {
	var (
		rule types.PricingRule
		err  error
	)
	if rule.FixedPrice, err = optionalDecimal(field+".fixed_price", pc.FixedPrice); err != nil {
		return rule, err
	}
	if rule.FallbackPrice, err = optionalDecimal(field+".fallback_price", pc.FallbackPrice); err != nil {
		return rule, err
	}
	if rule.MinPrice, err = optionalDecimal(field+".min_price", pc.MinPrice); err != nil {
		return rule, err
	}
	if rule.MaxPrice, err = optionalDecimal(field+".max_price", pc.MaxPrice); err != nil {
		return rule, err
	}

	f := pc.Filters
	rule.Filters = types.EligibilityFilters{
		PaymentMethods:  append([]string(nil), f.PaymentMethods...),
		MinRegisterDays: f.MinRegisterDays,
		MinOrders:       f.MinOrders,
		Nicknames:       append([]string(nil), f.Nicknames...),
	}
	if rule.Filters.MinBalance, err = requiredDecimal(field+".filters.min_balance", f.MinBalance); err != nil {
		return rule, err
	}
	if rule.Filters.MinLimit, err = requiredDecimal(field+".filters.min_limit", f.MinLimit); err != nil {
		return rule, err
	}
	if rule.Filters.MaxLimit, err = requiredDecimal(field+".filters.max_limit", f.MaxLimit); err != nil {
		return rule, err
	}
	return rule, nil
}

func optionalDecimal(field string, s scalar) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(string(s))
	if err != nil {
		return nil, &types.ConfigError{Field: field, Reason: fmt.Sprintf("not a number: %q", s)}
	}
	return &d, nil
}

// requiredDecimal treats an absent value as zero.
func requiredDecimal(field string, s scalar) (decimal.Decimal, error) {
	d, err := optionalDecimal(field, s)
	if err != nil || d == nil {
		return decimal.Zero, err
	}
	return *d, nil
}

func firstNonEmpty(vals ...scalar) scalar {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
