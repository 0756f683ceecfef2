package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/entitykit/entitykit/internal/core/entity"
)

// Duration parses YAML scalars like "5s" or "250ms".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full server configuration.
type Config struct {
	Log        LogConfig         `yaml:"log"`
	World      WorldConfig       `yaml:"world"`
	Gateway    GatewayConfig     `yaml:"gateway"`
	Archetypes []ArchetypeConfig `yaml:"archetypes"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type WorldConfig struct {
	MailboxSize    int      `yaml:"mailbox_size"`
	CallTimeout    Duration `yaml:"call_timeout"`
	RegistryShards int      `yaml:"registry_shards"`
}

type GatewayConfig struct {
	WebSocketAddr string `yaml:"websocket_addr"`
	QUICAddr      string `yaml:"quic_addr"`
	CertFile      string `yaml:"cert_file"`
	KeyFile       string `yaml:"key_file"`
}

// ArchetypeConfig is a spawnable entity recipe.
type ArchetypeConfig struct {
	Name       string           `yaml:"name"`
	Behaviours []string         `yaml:"behaviours"`
	Attributes AttributesConfig `yaml:"attributes"`
}

// AttributesConfig covers the attribute types expressible in YAML.
type AttributesConfig struct {
	Position *PositionConfig `yaml:"position"`
	Health   *HealthConfig   `yaml:"health"`
	Nick     *string         `yaml:"nick"`
}

type PositionConfig struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

type HealthConfig struct {
	Current int `yaml:"current"`
	Max     int `yaml:"max"`
}

// EntityAttributes converts the YAML recipe into attribute values.
func (a AttributesConfig) EntityAttributes() []entity.Attribute {
	var out []entity.Attribute
	if a.Position != nil {
		out = append(out, entity.Position{X: a.Position.X, Y: a.Position.Y})
	}
	if a.Health != nil {
		out = append(out, entity.Health{Current: a.Health.Current, Max: a.Health.Max})
	}
	if a.Nick != nil {
		out = append(out, entity.Nick{Value: *a.Nick})
	}
	return out
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		World: WorldConfig{
			MailboxSize:    64,
			CallTimeout:    Duration(5 * time.Second),
			RegistryShards: 16,
		},
		Gateway: GatewayConfig{
			WebSocketAddr: ":8080",
			QUICAddr:      ":8443",
		},
	}
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	if c.World.MailboxSize <= 0 {
		return fmt.Errorf("world.mailbox_size must be positive, got %d", c.World.MailboxSize)
	}
	if c.World.CallTimeout <= 0 {
		return fmt.Errorf("world.call_timeout must be positive")
	}
	if c.Gateway.WebSocketAddr == "" && c.Gateway.QUICAddr == "" {
		return fmt.Errorf("gateway needs at least one of websocket_addr, quic_addr")
	}
	seen := make(map[string]struct{}, len(c.Archetypes))
	for _, a := range c.Archetypes {
		if a.Name == "" {
			return fmt.Errorf("archetype without a name")
		}
		if _, ok := seen[a.Name]; ok {
			return fmt.Errorf("duplicate archetype %q", a.Name)
		}
		seen[a.Name] = struct{}{}
	}
	return nil
}
