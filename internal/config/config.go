package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Duration reads "2s"-style strings from TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Backend struct {
	// Kind selects the store: rest, postgres, sqlite or memory.
	Kind         string   `toml:"kind"`
	URL          string   `toml:"url"`
	Key          string   `toml:"key"`
	DSN          string   `toml:"dsn"`
	Path         string   `toml:"path"`
	PollInterval Duration `toml:"poll_interval"`
	Timeout      Duration `toml:"timeout"`
	// Refetches caps change-driven refetches per second.
	Refetches float64 `toml:"refetches"`
	Storm     bool    `toml:"storm"`
	StormRate int     `toml:"storm_rate"`
}

type Display struct {
	Route       string  `toml:"route"`
	Charset     string  `toml:"charset"`
	AspectRatio float64 `toml:"aspect_ratio"`
	RefreshRate int     `toml:"refresh_rate"`
	Record      string  `toml:"record"`
}

type Globe struct {
	Distance    float64 `toml:"distance"`
	MinDistance float64 `toml:"min_distance"`
	MaxDistance float64 `toml:"max_distance"`
	Lighting    bool    `toml:"lighting"`
	LightFollow bool    `toml:"light_follow"`
	Clouds      bool    `toml:"clouds"`
	Atmosphere  bool    `toml:"atmosphere"`
	// Theme forces the globe route theme. Empty means follow the stored preference.
	Theme string `toml:"theme"`
}

type Map struct {
	CenterLat     float64 `toml:"center_lat"`
	CenterLon     float64 `toml:"center_lon"`
	Zoom          int     `toml:"zoom"`
	LightTiles    string  `toml:"light_tiles"`
	DarkTiles     string  `toml:"dark_tiles"`
	Subdomains    string  `toml:"subdomains"`
	BoundariesURL string  `toml:"boundaries_url"`
	TileCache     int     `toml:"tile_cache"`
	Tiles         bool    `toml:"tiles"`
}

type Textures struct {
	Day      string   `toml:"day"`
	Night    string   `toml:"night"`
	Specular string   `toml:"specular"`
	Bump     string   `toml:"bump"`
	Clouds   string   `toml:"clouds"`
	Timeout  Duration `toml:"timeout"`
	Width    int      `toml:"width"`
	Height   int      `toml:"height"`
	Seed     int64    `toml:"seed"`
}

type Log struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

type Server struct {
	Addr string `toml:"addr"`
}

type Locate struct {
	Database string `toml:"database"`
	IP       string `toml:"ip"`
}

type Config struct {
	Backend  Backend  `toml:"backend"`
	Display  Display  `toml:"display"`
	Globe    Globe    `toml:"globe"`
	Map      Map      `toml:"map"`
	Textures Textures `toml:"textures"`
	Log      Log      `toml:"log"`
	Server   Server   `toml:"server"`
	Locate   Locate   `toml:"locate"`
	// Prefs is the file holding persisted UI preferences such as the map theme.
	Prefs string `toml:"prefs"`
}

const textureBase = "https://unpkg.com/three-globe/example/img/"

func Default() *Config {
	return &Config{
		Backend: Backend{
			Kind:         "memory",
			PollInterval: Duration{5 * time.Second},
			Timeout:      Duration{10 * time.Second},
			Refetches:    2,
			StormRate:    1,
		},
		Display: Display{
			Route:       "/2d",
			Charset:     "ascii",
			AspectRatio: 2.0,
			RefreshRate: 100,
		},
		Globe: Globe{
			Distance:    15,
			MinDistance: 8,
			MaxDistance: 30,
			Clouds:      true,
			Atmosphere:  true,
			Lighting:    true,
			Theme:       "dark",
		},
		Map: Map{
			CenterLat:     20,
			CenterLon:     0,
			Zoom:          2,
			LightTiles:    "https://{s}.basemaps.cartocdn.com/light_nolabels/{z}/{x}/{y}{r}.png",
			DarkTiles:     "https://{s}.basemaps.cartocdn.com/dark_nolabels/{z}/{x}/{y}{r}.png",
			Subdomains:    "abcd",
			BoundariesURL: "https://raw.githubusercontent.com/holtzy/D3-graph-gallery/master/DATA/world.geojson",
			TileCache:     256,
			Tiles:         true,
		},
		Textures: Textures{
			Day:      textureBase + "earth-blue-marble.jpg",
			Night:    textureBase + "earth-night.jpg",
			Specular: textureBase + "earth-water.png",
			Bump:     textureBase + "earth-topology.png",
			Clouds:   textureBase + "clouds.png",
			Timeout:  Duration{15 * time.Second},
			Width:    1024,
			Height:   512,
		},
		Log: Log{
			Level: "info",
		},
		Server: Server{
			Addr: ":8080",
		},
		Prefs: defaultPrefsPath(),
	}
}

func defaultPrefsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "sentiglobe-prefs.toml"
	}
	return filepath.Join(dir, "sentiglobe", "prefs.toml")
}

// Load decodes path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: unknown keys %v", ErrInvalid, undecoded)
	}

	return cfg, nil
}

// Validate checks ranges. Errors wrap ErrInvalid.
func (c *Config) Validate() error {
	switch c.Backend.Kind {
	case "rest":
		if c.Backend.URL == "" {
			return fmt.Errorf("%w: backend.url is required for the rest backend", ErrInvalid)
		}
	case "postgres":
		if c.Backend.DSN == "" {
			return fmt.Errorf("%w: backend.dsn is required for the postgres backend", ErrInvalid)
		}
	case "sqlite":
		if c.Backend.Path == "" {
			return fmt.Errorf("%w: backend.path is required for the sqlite backend", ErrInvalid)
		}
	case "memory":
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalid, c.Backend.Kind)
	}

	if p := c.Backend.PollInterval.Duration; p < time.Second || p > 300*time.Second {
		return fmt.Errorf("%w: poll interval must be between 1s and 300s", ErrInvalid)
	}
	if c.Backend.Refetches <= 0 {
		return fmt.Errorf("%w: refetches must be positive", ErrInvalid)
	}
	if c.Backend.Storm && (c.Backend.StormRate < 1 || c.Backend.StormRate > 50) {
		return fmt.Errorf("%w: storm rate must be between 1 and 50", ErrInvalid)
	}

	if c.Display.RefreshRate < 50 || c.Display.RefreshRate > 1000 {
		return fmt.Errorf("%w: refresh rate must be between 50 and 1000 milliseconds", ErrInvalid)
	}
	if c.Display.AspectRatio < 1.0 || c.Display.AspectRatio > 4.0 {
		return fmt.Errorf("%w: aspect ratio must be between 1.0 and 4.0", ErrInvalid)
	}
	switch c.Display.Charset {
	case "ascii", "blocks", "braille":
	default:
		return fmt.Errorf("%w: unknown charset %q", ErrInvalid, c.Display.Charset)
	}
	switch c.Display.Route {
	case "", "/", "/2d", "/3d":
	default:
		return fmt.Errorf("%w: unknown route %q", ErrInvalid, c.Display.Route)
	}

	g := c.Globe
	if g.MinDistance <= 0 || g.MinDistance >= g.MaxDistance {
		return fmt.Errorf("%w: globe distance bounds must satisfy 0 < min < max", ErrInvalid)
	}
	if g.Distance < g.MinDistance || g.Distance > g.MaxDistance {
		return fmt.Errorf("%w: globe distance must be between %.0f and %.0f", ErrInvalid, g.MinDistance, g.MaxDistance)
	}
	switch g.Theme {
	case "", "light", "dark":
	default:
		return fmt.Errorf("%w: unknown globe theme %q", ErrInvalid, g.Theme)
	}

	if c.Map.Zoom < 2 || c.Map.Zoom > 18 {
		return fmt.Errorf("%w: map zoom must be between 2 and 18", ErrInvalid)
	}
	if c.Map.CenterLat < -90 || c.Map.CenterLat > 90 {
		return fmt.Errorf("%w: map center latitude out of range", ErrInvalid)
	}
	if c.Map.TileCache < 1 {
		return fmt.Errorf("%w: tile cache must hold at least one tile", ErrInvalid)
	}

	if c.Textures.Width < 16 || c.Textures.Height < 8 {
		return fmt.Errorf("%w: texture size too small", ErrInvalid)
	}
	if c.Textures.Timeout.Duration <= 0 {
		return fmt.Errorf("%w: texture timeout must be positive", ErrInvalid)
	}

	return nil
}
