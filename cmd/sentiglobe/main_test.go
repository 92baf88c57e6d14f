package main

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sentiment-globe/internal/config"
	"sentiment-globe/internal/logger"
	"sentiment-globe/internal/store"
	"sentiment-globe/internal/store/memory"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sentiglobe.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFlagsOverrideConfig(t *testing.T) {
	path := writeConfig(t, `
[display]
charset = "blocks"
refresh_rate = 250

[globe]
lighting = false
`)
	root := newRootCmd()
	if err := root.ParseFlags([]string{"--config", path, "-r", "50", "--no-tiles"}); err != nil {
		t.Fatal(err)
	}
	f := &flags{configFile: path, refreshRate: 50, noTiles: true}
	cfg, err := loadConfig(root, f)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Display.RefreshRate != 50 {
		t.Errorf("refresh = %d, want the flag value", cfg.Display.RefreshRate)
	}
	if cfg.Display.Charset != "blocks" || cfg.Globe.Lighting {
		t.Errorf("file values lost: charset %q lighting %v", cfg.Display.Charset, cfg.Globe.Lighting)
	}
	if cfg.Map.Tiles {
		t.Error("--no-tiles ignored")
	}
}

func TestInvalidFlagRejected(t *testing.T) {
	_, err := execute(t, "--backend", "mongo", "list")
	if !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}

func TestOpenBackendFallsBack(t *testing.T) {
	cfg := config.Default()
	cfg.Backend.Kind = "sqlite"
	cfg.Backend.Path = filepath.Join(t.TempDir(), "file-not-dir")
	if err := os.WriteFile(cfg.Backend.Path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.Backend.Path = filepath.Join(cfg.Backend.Path, "news.db")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := newService(ctx, cfg, logger.Discard())
	defer svc.Close()
	if svc.BackendName() != "unavailable" {
		t.Fatalf("backend = %q", svc.BackendName())
	}
	if _, origin := svc.FetchCountries(ctx); origin != store.Fallback {
		t.Errorf("origin = %v", origin)
	}
}

func TestOpenBackendMemory(t *testing.T) {
	b, err := openBackend(config.Default(), logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	if _, ok := b.(*memory.Backend); !ok {
		t.Errorf("backend = %T", b)
	}
}

func TestList(t *testing.T) {
	out, err := execute(t, "list")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"COUNTRY", "USA", "China"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
}

func TestListCountry(t *testing.T) {
	out, err := execute(t, "list", "--country", "usa")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "New York") {
		t.Errorf("output lacks the city:\n%s", out)
	}

	if _, err := execute(t, "list", "-c", "Atlantis"); err == nil {
		t.Error("unknown country accepted")
	}
}

func TestTextures(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, "[textures]\nwidth = 64\nheight = 32\n")
	out, err := execute(t, "--config", path, "textures", "-o", dir)
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(out, "Wrote "); n != 5 {
		t.Errorf("%d files written:\n%s", n, out)
	}
}

func TestMask(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 8, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 8; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	for y := 0; y < 4; y++ {
		img.SetGray(0, y, color.Gray{})
		img.SetGray(1, y, color.Gray{})
	}
	path := filepath.Join(t.TempDir(), "land.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	f.Close()

	out, err := execute(t, "mask", path, "--width", "8", "--height", "4")
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(out, "\n"); lines != 4 {
		t.Errorf("%d rows:\n%s", lines, out)
	}
}

func TestSeedNeedsDatabase(t *testing.T) {
	if _, err := execute(t, "seed"); !errors.Is(err, config.ErrInvalid) {
		t.Errorf("seed on memory: err = %v", err)
	}
}

func TestSeedAndMigrateSQLite(t *testing.T) {
	db := filepath.Join(t.TempDir(), "news.db")
	if _, err := execute(t, "--backend", "sqlite", "--db", db, "migrate"); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "--backend", "sqlite", "--db", db, "seed")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Seeded sqlite") {
		t.Errorf("output = %q", out)
	}

	out, err = execute(t, "--backend", "sqlite", "--db", db, "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "USA") || strings.Contains(out, "offline") {
		t.Errorf("list after seed:\n%s", out)
	}
}
