package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"sentiment-globe/internal/app"
	"sentiment-globe/internal/config"
	"sentiment-globe/internal/locate"
	"sentiment-globe/internal/logger"
	"sentiment-globe/internal/record"
	"sentiment-globe/internal/store"
	"sentiment-globe/internal/theme"
)

// flags holds command-line values. Only flags the user set override the config file.
type flags struct {
	configFile  string
	debugFile   string
	logLevel    string
	route       string
	charset     string
	aspectRatio float64
	refreshRate int
	recordFile  string
	backend     string
	url         string
	key         string
	dsn         string
	dbPath      string
	storm       bool
	stormRate   int
	noTiles     bool
	geoipDB     string
	ip          string
	globeTheme  string
	lighting    bool
	lightFollow bool
	noClouds    bool
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	var cfg *config.Config

	root := &cobra.Command{
		Use:   "sentiglobe",
		Short: "World news sentiment on a terminal globe and map",
		Long: `sentiglobe renders per-country news sentiment as a 2D choropleth map and a
3D globe in the terminal. Select a country on the globe to see its cities and news.

Data comes from the configured backend. When it is unreachable the views fall back to
a built-in offline dataset and say so in the status line.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = loadConfig(cmd, f)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, cfg)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.configFile, "config", "", "Load settings from a TOML config file")
	pf.StringVarP(&f.debugFile, "debug", "d", "", "Debug log filename")
	pf.StringVar(&f.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	pf.StringVar(&f.backend, "backend", "memory", "Data backend: rest|postgres|sqlite|memory")
	pf.StringVarP(&f.url, "url", "u", "", "Base URL of the rest backend")
	pf.StringVar(&f.key, "key", "", "API key of the rest backend")
	pf.StringVar(&f.dsn, "dsn", "", "Postgres connection string")
	pf.StringVar(&f.dbPath, "db", "", "SQLite database file")
	pf.BoolVar(&f.storm, "demo-storm", false, "Mutate the memory backend continuously")
	pf.IntVar(&f.stormRate, "demo-rate", 1, "Demo storm changes per second")

	fl := root.Flags()
	fl.StringVar(&f.route, "route", "/2d", "Initial view: /2d or /3d")
	fl.StringVar(&f.charset, "charset", "ascii", "Globe character set: ascii|blocks|braille")
	fl.Float64VarP(&f.aspectRatio, "aspect", "a", 2.0, "Character aspect ratio")
	fl.IntVarP(&f.refreshRate, "refresh", "r", 100, "Refresh rate in milliseconds")
	fl.StringVar(&f.recordFile, "record", "", "Record the session to an asciinema file")
	fl.BoolVar(&f.noTiles, "no-tiles", false, "Draw the map without raster tiles")
	fl.StringVar(&f.geoipDB, "geoip", "", "GeoLite2 City database used to face the globe at the viewer")
	fl.StringVar(&f.ip, "ip", "", "IP address to locate with --geoip")
	fl.StringVar(&f.globeTheme, "theme", "dark", "Globe theme: light|dark, empty follows the saved map theme")
	fl.BoolVar(&f.lighting, "lighting", true, "Day/night lighting on the globe")
	fl.BoolVar(&f.lightFollow, "light-follow", false, "Keep the lit side facing the camera")
	fl.BoolVar(&f.noClouds, "no-clouds", false, "Hide the cloud layer")

	root.AddCommand(
		newServeCmd(&cfg),
		newListCmd(&cfg),
		newTexturesCmd(&cfg),
		newMaskCmd(),
		newSeedCmd(&cfg),
		newMigrateCmd(&cfg),
	)
	return root
}

// loadConfig reads the config file over the defaults, applies the flags that were set
// and validates the result.
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	cfg, err := config.Load(f.configFile)
	if err != nil {
		return nil, err
	}

	set := func(name string) bool {
		fl := cmd.Flags().Lookup(name)
		return fl != nil && fl.Changed
	}
	if set("debug") {
		cfg.Log.File = f.debugFile
	}
	if set("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if set("backend") {
		cfg.Backend.Kind = f.backend
	}
	if set("url") {
		cfg.Backend.URL = f.url
	}
	if set("key") {
		cfg.Backend.Key = f.key
	}
	if set("dsn") {
		cfg.Backend.DSN = f.dsn
	}
	if set("db") {
		cfg.Backend.Path = f.dbPath
	}
	if set("demo-storm") {
		cfg.Backend.Storm = f.storm
	}
	if set("demo-rate") {
		cfg.Backend.StormRate = f.stormRate
	}
	if set("route") {
		cfg.Display.Route = f.route
	}
	if set("charset") {
		cfg.Display.Charset = f.charset
	}
	if set("aspect") {
		cfg.Display.AspectRatio = f.aspectRatio
	}
	if set("refresh") {
		cfg.Display.RefreshRate = f.refreshRate
	}
	if set("record") {
		cfg.Display.Record = f.recordFile
	}
	if set("no-tiles") {
		cfg.Map.Tiles = !f.noTiles
	}
	if set("geoip") {
		cfg.Locate.Database = f.geoipDB
	}
	if set("ip") {
		cfg.Locate.IP = f.ip
	}
	if set("theme") {
		cfg.Globe.Theme = f.globeTheme
	}
	if set("lighting") {
		cfg.Globe.Lighting = f.lighting
	}
	if set("light-follow") {
		cfg.Globe.LightFollow = f.lightFollow
	}
	if set("no-clouds") {
		cfg.Globe.Clouds = !f.noClouds
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runTUI(cmd *cobra.Command, cfg *config.Config) error {
	// The screen belongs to the UI, so the log only goes to the debug file.
	log, closer, err := logger.New(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		return err
	}
	defer closer.Close()
	log.WithField("backend", cfg.Backend.Kind).Info("starting")

	svc := newService(cmd.Context(), cfg, log)
	defer svc.Close()

	prefs, err := theme.OpenPrefs(cfg.Prefs)
	if err != nil {
		log.WithError(err).Warn("preferences unreadable, not persisting the theme")
		prefs = theme.MemoryPrefs()
	}
	ctx := theme.WithController(cmd.Context(), theme.NewController(prefs, log))

	var home *orb.Point
	if lat, lon, ok := locate.Home(cfg.Locate.Database, cfg.Locate.IP, log); ok {
		home = &orb.Point{lon, lat}
	}

	screen, err := newScreen()
	if err != nil {
		return err
	}
	defer screen.Fini()

	width, height := screen.Size()
	rec, err := record.Create(cfg.Display.Record, width, height)
	if err != nil {
		log.WithError(err).Warn("failed to initialize recorder")
	}
	defer closeLogged(rec, log, "recording")

	a, err := app.New(ctx, app.Options{
		Screen:   screen,
		Service:  svc,
		Config:   cfg,
		Recorder: rec,
		Log:      log,
		Home:     home,
	})
	if err != nil {
		return err
	}
	return a.Run(ctx)
}

func newScreen() (tcell.Screen, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	screen.EnableMouse()
	screen.SetStyle(theme.PaletteFor(theme.Light).Style())
	screen.Clear()
	return screen, nil
}

func closeLogged(c io.Closer, log logrus.FieldLogger, what string) {
	if err := c.Close(); err != nil {
		log.WithError(err).Warnf("closing %s", what)
	}
}

// stderrLogger is the logger of the non-interactive commands.
func stderrLogger(cfg *config.Config) (*logrus.Logger, io.Closer, error) {
	return logger.New(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File, Console: os.Stderr})
}

func serviceOptions(cfg *config.Config) store.Options {
	return store.Options{
		Refetches:  cfg.Backend.Refetches,
		MinBackoff: time.Second,
		MaxBackoff: time.Minute,
	}
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
