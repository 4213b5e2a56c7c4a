// Package config loads the macro settings file and applies environment
// overrides.
package config

import (
	"MultiView/afk"
	"MultiView/keys"
	"MultiView/movement"
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// File is the settings file inside the embedded assets.
const File = "assets/macros.yaml"

// Environment overrides.
const (
	EnvLayout    = "MULTIVIEW_LAYOUT"
	EnvPolicy    = "MULTIVIEW_POLICY"
	EnvListen    = "MULTIVIEW_LISTEN"
	EnvDemoViews = "MULTIVIEW_DEMO_VIEWS"
	EnvDebug     = "MULTIVIEW_DEBUG"
	EnvMute      = "MULTIVIEW_MUTE"
	EnvLang      = "MULTIVIEW_LANG"
)

// ContentReader reads files from the embedded assets.
type ContentReader interface {
	ReadFile(name string) ([]byte, error)
}

// Config is the resolved application configuration.
type Config struct {
	Layout   keys.Layout
	Policy   movement.Policy
	Policies map[string]movement.Policy
	AFK      afk.Timing

	Listen    string
	DemoViews int
	Debug     bool
	Mute      bool
	Lang      string
}

type file struct {
	Layout    string               `yaml:"layout"`
	Policy    string               `yaml:"policy"`
	Listen    string               `yaml:"listen"`
	DemoViews int                  `yaml:"demoViews"`
	Policies  map[string]yaml.Node `yaml:"policies"`
	AFK       yaml.Node            `yaml:"afk"`
}

// Load reads the settings file from r and applies the environment.
func Load(r ContentReader) (Config, error) {
	data, err := r.ReadFile(File)
	if err != nil {
		return Config{}, fmt.Errorf("read %s: %w", File, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Parse decodes a settings document. Missing values keep the built-in
// defaults.
func Parse(data []byte) (Config, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", File, err)
	}

	cfg := Config{
		Layout:    keys.QWERTY,
		DemoViews: f.DemoViews,
		Listen:    f.Listen,
		AFK:       afk.DefaultTiming(),
		Policies: map[string]movement.Policy{
			movement.PolicySynchronized: movement.Synchronized(),
			movement.PolicySimple:       movement.Simple(),
		},
	}
	if f.Layout != "" {
		l, err := keys.LayoutByName(f.Layout)
		if err != nil {
			return Config{}, err
		}
		cfg.Layout = l
	}
	for name, node := range f.Policies {
		p, err := movement.PolicyByName(name)
		if err != nil {
			return Config{}, err
		}
		if err := node.Decode(&p); err != nil {
			return Config{}, fmt.Errorf("policy %s: %w", name, err)
		}
		cfg.Policies[name] = p
	}
	if !f.AFK.IsZero() {
		if err := f.AFK.Decode(&cfg.AFK); err != nil {
			return Config{}, fmt.Errorf("afk: %w", err)
		}
	}
	if err := cfg.selectPolicy(f.Policy); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) selectPolicy(name string) error {
	if name == "" {
		name = movement.PolicySynchronized
	}
	for n, p := range c.Policies {
		p.Layout = c.Layout
		c.Policies[n] = p
	}
	p, ok := c.Policies[name]
	if !ok {
		return fmt.Errorf("unknown movement policy %q", name)
	}
	c.Policy = p
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvLayout); ok && v != "" {
		l, err := keys.LayoutByName(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvLayout, err)
		}
		c.Layout = l
	}
	policy := c.Policy.Name
	if v, ok := lookup(EnvPolicy); ok && v != "" {
		policy = v
	}
	if err := c.selectPolicy(policy); err != nil {
		return fmt.Errorf("%s: %w", EnvPolicy, err)
	}
	if v, ok := lookup(EnvListen); ok {
		c.Listen = v
	}
	if v, ok := lookup(EnvDemoViews); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDemoViews, err)
		}
		c.DemoViews = n
	}
	for _, b := range []struct {
		env string
		dst *bool
	}{{EnvDebug, &c.Debug}, {EnvMute, &c.Mute}} {
		v, ok := lookup(b.env)
		if !ok || v == "" {
			continue
		}
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", b.env, err)
		}
		*b.dst = on
	}
	if v, ok := lookup(EnvLang); ok {
		c.Lang = v
	}
	return nil
}

// Validate checks every policy and the AFK timings.
func (c Config) Validate() error {
	var errs []error
	for _, p := range c.Policies {
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	t := c.AFK
	for _, d := range []struct {
		name string
		v    int64
	}{
		{"hostHold", int64(t.HostHold)},
		{"playerHold", int64(t.PlayerHold)},
		{"tapHold", int64(t.TapHold)},
		{"tapEvery", int64(t.TapEvery)},
		{"watchdog", int64(t.Watchdog)},
	} {
		if d.v <= 0 {
			errs = append(errs, fmt.Errorf("afk %s must be positive", d.name))
		}
	}
	if t.PlayerHistory < 1 {
		errs = append(errs, fmt.Errorf("afk playerHistory %d", t.PlayerHistory))
	}
	if !t.TapKey.Valid() {
		errs = append(errs, fmt.Errorf("afk tapKey %q", t.TapKey))
	}
	if c.DemoViews < 0 {
		errs = append(errs, fmt.Errorf("demoViews %d", c.DemoViews))
	}
	return errors.Join(errs...)
}
