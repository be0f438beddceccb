package ecengine

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// CombinerStrategy selects the dual-scalar combiner implementation.
type CombinerStrategy string

const (
	// CombinerAuto uses the accelerated combiner when the engine has a
	// Shamir primitive and the fallback otherwise.
	CombinerAuto CombinerStrategy = "auto"
	// CombinerAccelerated requires the engine's Shamir primitive.
	CombinerAccelerated CombinerStrategy = "accelerated"
	// CombinerFallback always uses two multiplications and an addition.
	CombinerFallback CombinerStrategy = "fallback"
)

// Config holds the tunables of the core.
type Config struct {
	// SignRetries bounds the ECDSA signing loop.
	SignRetries int `mapstructure:"signretries" json:"signretries"`

	// RandomRetries bounds full-width resampling in the nonce generator;
	// RandomPatches bounds the most-significant-byte patches tried per
	// sample.
	RandomRetries int `mapstructure:"randomretries" json:"randomretries"`
	RandomPatches int `mapstructure:"randompatches" json:"randompatches"`

	// Combiner picks the dual-scalar combiner.
	Combiner CombinerStrategy `mapstructure:"combiner" json:"combiner"`

	// TrapInfinity fails multiplications whose X and Y are both zero on
	// Weierstrass and Edwards curves.
	TrapInfinity bool `mapstructure:"trapinfinity" json:"trapinfinity"`

	// TrapX25519Zero fails X25519 multiplications whose X is zero.
	TrapX25519Zero bool `mapstructure:"trapx25519zero" json:"trapx25519zero"`

	// CheckPublicKey verifies the public key is on the curve before
	// verification.
	CheckPublicKey bool `mapstructure:"checkpublickey" json:"checkpublickey"`

	// CheckSelfDerived validates the generator-derived point in ECDH.
	CheckSelfDerived bool `mapstructure:"checkselfderived" json:"checkselfderived"`

	// TimingJitter is the upper bound of dummy rounds the timing barrier
	// spins before the final comparison. Zero disables it.
	TimingJitter int `mapstructure:"timingjitter" json:"timingjitter"`

	// ScratchLimit bounds outstanding scratch bytes of the default
	// allocator. Zero means unbounded.
	ScratchLimit int `mapstructure:"scratchlimit" json:"scratchlimit"`

	// DisabledCurves lists curve names contexts refuse to be created for.
	// A comma separated string is accepted.
	DisabledCurves []string `mapstructure:"disabledcurves" json:"disabledcurves"`
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		SignRetries:      10,
		RandomRetries:    16,
		RandomPatches:    4,
		Combiner:         CombinerAuto,
		TrapInfinity:     true,
		TrapX25519Zero:   true,
		CheckPublicKey:   true,
		CheckSelfDerived: false,
		TimingJitter:     64,
		ScratchLimit:     0,
	}
}

// Validate checks the configuration for values the core cannot run with.
func (c *Config) Validate() error {
	if c.SignRetries < 1 {
		return makeError(ErrInvalidArgument, fmt.Sprintf("signretries must be positive, got %d", c.SignRetries))
	}
	if c.RandomRetries < 1 {
		return makeError(ErrInvalidArgument, fmt.Sprintf("randomretries must be positive, got %d", c.RandomRetries))
	}
	if c.RandomPatches < 0 || c.TimingJitter < 0 || c.ScratchLimit < 0 {
		return makeError(ErrInvalidArgument, "randompatches, timingjitter and scratchlimit must not be negative")
	}
	switch c.Combiner {
	case CombinerAuto, CombinerAccelerated, CombinerFallback:
	default:
		return makeError(ErrInvalidArgument, fmt.Sprintf("unknown combiner %q", c.Combiner))
	}
	for _, name := range c.DisabledCurves {
		if CurveByName(name) == nil {
			return makeError(ErrInvalidArgument, fmt.Sprintf("unknown curve %q in disabledcurves", name))
		}
	}
	return nil
}

// curveEnabled reports whether curve c may be used under this configuration.
func (c *Config) curveEnabled(curve *Curve) bool {
	for _, name := range c.DisabledCurves {
		if CurveByName(name) == curve {
			return false
		}
	}
	return true
}

// combinerHook lowercases combiner strategy strings while decoding.
func combinerHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(CombinerStrategy("")) {
		return data, nil
	}
	return CombinerStrategy(strings.ToLower(strings.TrimSpace(data.(string)))), nil
}

// LoadConfig reads the configuration under key from v, starting from
// DefaultConfig so absent keys keep their defaults.
func LoadConfig(v *viper.Viper, key string) (Config, error) {
	conf := DefaultConfig()
	if v == nil {
		return conf, nil
	}
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		combinerHook,
		mapstructure.StringToSliceHookFunc(","),
	))
	var err error
	if key == "" {
		err = v.Unmarshal(&conf, hook)
	} else if v.IsSet(key) {
		err = v.UnmarshalKey(key, &conf, hook)
	}
	if err != nil {
		return Config{}, errors.Wrapf(err, "failed decoding configuration %q", key)
	}
	if err := conf.Validate(); err != nil {
		return Config{}, err
	}
	return conf, nil
}

// NewViper returns a viper instance bound to the ECENGINE environment
// prefix. Environment overrides apply to keys read with Get, not to nested
// structures decoded by LoadConfig.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("ECENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}
