package devapi

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/drinkshelf/internal/buildinfo"
	"github.com/dmitrijs2005/drinkshelf/internal/flagx"
)

// Config holds the dev API settings.
//
// Fields:
//   - Addr: listen address.
//   - SecretKey: HMAC secret for HS256 access tokens. Development only.
//   - TokenTTL: lifetime of issued access tokens.
//   - LogLevel: debug, info, warn or error.
//   - Version: reported by /health.
type Config struct {
	Addr      string
	SecretKey string
	TokenTTL  time.Duration
	LogLevel  string
	Version   string
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.Addr = ":8000"
	c.SecretKey = "secretKey"
	c.TokenTTL = 30 * time.Minute
	c.LogLevel = "info"
	c.Version = buildinfo.Version()
}

// LoadConfig applies defaults and then the flags found in args.
//
// Supported flags:
//
//	-a string   listen address (e.g. ":8000")
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-l string   log level
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	fs := flag.NewFlagSet("devapi", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.Addr, "a", cfg.Addr, "address and port to listen on")
	fs.StringVar(&cfg.SecretKey, "s", cfg.SecretKey, "secret key")
	ttl := fs.Int("t", int(cfg.TokenTTL.Minutes()), "access token validity (in minutes)")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(flagx.FilterArgs(args, []string{"-a", "-s", "-t", "-l"})); err != nil {
		return nil, err
	}

	cfg.TokenTTL = time.Duration(*ttl) * time.Minute
	return cfg, nil
}
