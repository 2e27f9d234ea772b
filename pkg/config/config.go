package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v2"

	"roomrelay/pkg/room"
	"roomrelay/pkg/server"
	"roomrelay/pkg/utils"
)

const DefaultPath = "configs/config.ini"

var ErrUnsupportedFormat = errors.New("config: unsupported file format")

// Config is everything the relay process needs at startup.
type Config struct {
	Server server.Config
	Room   room.Options
	Log    utils.LogOptions
}

func Default() Config {
	return Config{
		Server: server.GetDefaultConfig(),
		Room:   room.DefaultOptions(),
		Log:    utils.LogOptions{Level: "info", Format: "console"},
	}
}

// Load reads path (ini, or yaml by extension) over the defaults, then
// applies RELAY_* environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
		var err error
		switch strings.ToLower(filepath.Ext(path)) {
		case ".ini", "":
			err = loadINI(path, &cfg)
		case ".yaml", ".yml":
			err = loadYAML(path, &cfg)
		default:
			err = fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
		}
		if err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg, os.LookupEnv)
	cfg.Sanitize()
	return cfg, nil
}

func loadINI(path string, cfg *Config) error {
	file, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	general := file.Section("general")
	cfg.Server.Host = general.Key("host").MustString(cfg.Server.Host)
	cfg.Server.Port = general.Key("port").MustInt(cfg.Server.Port)
	cfg.Server.CertFile = general.Key("cert").MustString(cfg.Server.CertFile)
	cfg.Server.KeyFile = general.Key("key").MustString(cfg.Server.KeyFile)
	cfg.Server.WebSocketPath = general.Key("ws_path").MustString(cfg.Server.WebSocketPath)
	cfg.Server.StaticDir = general.Key("static_dir").MustString(cfg.Server.StaticDir)

	transport := file.Section("transport")
	cfg.Server.Conn.MaxMessageSize = transport.Key("max_message_size").MustInt64(cfg.Server.Conn.MaxMessageSize)
	cfg.Server.Conn.SendQueue = transport.Key("send_queue").MustInt(cfg.Server.Conn.SendQueue)
	cfg.Server.Conn.PingInterval = transport.Key("ping_interval").MustDuration(cfg.Server.Conn.PingInterval)
	cfg.Server.Conn.PongWait = transport.Key("pong_wait").MustDuration(cfg.Server.Conn.PongWait)
	cfg.Server.Conn.WriteWait = transport.Key("write_wait").MustDuration(cfg.Server.Conn.WriteWait)

	rooms := file.Section("room")
	cfg.Room.PruneEmptyRooms = rooms.Key("prune_empty").MustBool(cfg.Room.PruneEmptyRooms)
	cfg.Room.RequireConsent = rooms.Key("require_consent").MustBool(cfg.Room.RequireConsent)
	cfg.Room.EventBuffer = rooms.Key("event_buffer").MustInt(cfg.Room.EventBuffer)

	logs := file.Section("log")
	cfg.Log.Level = logs.Key("level").MustString(cfg.Log.Level)
	cfg.Log.Format = logs.Key("format").MustString(cfg.Log.Format)
	cfg.Log.NoColor = logs.Key("no_color").MustBool(cfg.Log.NoColor)
	return nil
}

// yamlFile mirrors the ini layout. Pointers tell an absent key from a zero.
type yamlFile struct {
	General struct {
		Host      *string `yaml:"host"`
		Port      *int    `yaml:"port"`
		Cert      *string `yaml:"cert"`
		Key       *string `yaml:"key"`
		WSPath    *string `yaml:"ws_path"`
		StaticDir *string `yaml:"static_dir"`
	} `yaml:"general"`
	Transport struct {
		MaxMessageSize *int64         `yaml:"max_message_size"`
		SendQueue      *int           `yaml:"send_queue"`
		PingInterval   *time.Duration `yaml:"ping_interval"`
		PongWait       *time.Duration `yaml:"pong_wait"`
		WriteWait      *time.Duration `yaml:"write_wait"`
	} `yaml:"transport"`
	Room struct {
		PruneEmpty     *bool `yaml:"prune_empty"`
		RequireConsent *bool `yaml:"require_consent"`
		EventBuffer    *int  `yaml:"event_buffer"`
	} `yaml:"room"`
	Log struct {
		Level   *string `yaml:"level"`
		Format  *string `yaml:"format"`
		NoColor *bool   `yaml:"no_color"`
	} `yaml:"log"`
}

func loadYAML(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	var file yamlFile
	if err := yaml.UnmarshalStrict(raw, &file); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	setString(&cfg.Server.Host, file.General.Host)
	setInt(&cfg.Server.Port, file.General.Port)
	setString(&cfg.Server.CertFile, file.General.Cert)
	setString(&cfg.Server.KeyFile, file.General.Key)
	setString(&cfg.Server.WebSocketPath, file.General.WSPath)
	setString(&cfg.Server.StaticDir, file.General.StaticDir)

	if v := file.Transport.MaxMessageSize; v != nil {
		cfg.Server.Conn.MaxMessageSize = *v
	}
	setInt(&cfg.Server.Conn.SendQueue, file.Transport.SendQueue)
	setDuration(&cfg.Server.Conn.PingInterval, file.Transport.PingInterval)
	setDuration(&cfg.Server.Conn.PongWait, file.Transport.PongWait)
	setDuration(&cfg.Server.Conn.WriteWait, file.Transport.WriteWait)

	setBool(&cfg.Room.PruneEmptyRooms, file.Room.PruneEmpty)
	setBool(&cfg.Room.RequireConsent, file.Room.RequireConsent)
	setInt(&cfg.Room.EventBuffer, file.Room.EventBuffer)

	setString(&cfg.Log.Level, file.Log.Level)
	setString(&cfg.Log.Format, file.Log.Format)
	setBool(&cfg.Log.NoColor, file.Log.NoColor)
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *time.Duration) {
	if v != nil {
		*dst = *v
	}
}

type lookupFunc func(key string) (string, bool)

// applyEnv overlays RELAY_* variables. Unparseable values are logged and
// skipped.
func applyEnv(cfg *Config, lookup lookupFunc) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				utils.WarnF("ignoring %s=%q: %v", key, v, err)
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				utils.WarnF("ignoring %s=%q: %v", key, v, err)
				return
			}
			*dst = b
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				utils.WarnF("ignoring %s=%q: %v", key, v, err)
				return
			}
			*dst = d
		}
	}

	str("RELAY_HOST", &cfg.Server.Host)
	num("RELAY_PORT", &cfg.Server.Port)
	str("RELAY_CERT", &cfg.Server.CertFile)
	str("RELAY_KEY", &cfg.Server.KeyFile)
	str("RELAY_WS_PATH", &cfg.Server.WebSocketPath)
	str("RELAY_STATIC_DIR", &cfg.Server.StaticDir)

	if v, ok := lookup("RELAY_MAX_MESSAGE_SIZE"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err != nil {
			utils.WarnF("ignoring RELAY_MAX_MESSAGE_SIZE=%q: %v", v, err)
		} else {
			cfg.Server.Conn.MaxMessageSize = n
		}
	}
	num("RELAY_SEND_QUEUE", &cfg.Server.Conn.SendQueue)
	dur("RELAY_PING_INTERVAL", &cfg.Server.Conn.PingInterval)
	dur("RELAY_PONG_WAIT", &cfg.Server.Conn.PongWait)
	dur("RELAY_WRITE_WAIT", &cfg.Server.Conn.WriteWait)

	flag("RELAY_PRUNE_EMPTY", &cfg.Room.PruneEmptyRooms)
	flag("RELAY_REQUIRE_CONSENT", &cfg.Room.RequireConsent)
	num("RELAY_EVENT_BUFFER", &cfg.Room.EventBuffer)

	str("RELAY_LOG_LEVEL", &cfg.Log.Level)
	str("RELAY_LOG_FORMAT", &cfg.Log.Format)
	flag("RELAY_LOG_NO_COLOR", &cfg.Log.NoColor)
}

// Sanitize replaces out-of-range values with their defaults.
func (cfg *Config) Sanitize() {
	def := Default()
	fix := func(name string, bad bool, reset func()) {
		if bad {
			utils.WarnF("invalid %s, using default", name)
			reset()
		}
	}

	fix("general.port", cfg.Server.Port <= 0 || cfg.Server.Port > 65535,
		func() { cfg.Server.Port = def.Server.Port })
	fix("general.ws_path", !strings.HasPrefix(cfg.Server.WebSocketPath, "/") || cfg.Server.WebSocketPath == "/" || cfg.Server.WebSocketPath == "/healthz",
		func() { cfg.Server.WebSocketPath = def.Server.WebSocketPath })
	fix("transport.max_message_size", cfg.Server.Conn.MaxMessageSize <= 0,
		func() { cfg.Server.Conn.MaxMessageSize = def.Server.Conn.MaxMessageSize })
	fix("transport.send_queue", cfg.Server.Conn.SendQueue <= 0,
		func() { cfg.Server.Conn.SendQueue = def.Server.Conn.SendQueue })
	fix("transport.pong_wait", cfg.Server.Conn.PongWait <= 0,
		func() { cfg.Server.Conn.PongWait = def.Server.Conn.PongWait })
	fix("transport.ping_interval", cfg.Server.Conn.PingInterval <= 0 || cfg.Server.Conn.PingInterval >= cfg.Server.Conn.PongWait,
		func() { cfg.Server.Conn.PingInterval = cfg.Server.Conn.PongWait * 9 / 10 })
	fix("transport.write_wait", cfg.Server.Conn.WriteWait <= 0,
		func() { cfg.Server.Conn.WriteWait = def.Server.Conn.WriteWait })
	fix("room.event_buffer", cfg.Room.EventBuffer <= 0,
		func() { cfg.Room.EventBuffer = def.Room.EventBuffer })

	_, err := utils.ParseLevel(cfg.Log.Level)
	fix("log.level", err != nil, func() { cfg.Log.Level = def.Log.Level })
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)
	fix("log.format", cfg.Log.Format != "console" && cfg.Log.Format != "json",
		func() { cfg.Log.Format = def.Log.Format })
}
