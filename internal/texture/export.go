package texture

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"
)

// FileName is the file WritePNGs uses for slot.
func FileName(slot Slot) string {
	return "earth-" + slot.String() + ".png"
}

// WritePNGs draws every slot and saves it under dir. It returns the paths written.
func WritePNGs(dir string, synth *Synthesizer) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	var paths []string
	for _, slot := range Slots {
		path := filepath.Join(dir, FileName(slot))
		f, err := os.Create(path)
		if err != nil {
			return paths, fmt.Errorf("create %s: %w", path, err)
		}
		err = png.Encode(f, synth.Draw(slot))
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return paths, fmt.Errorf("encode %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// LoadMaskPNG reads a black-on-white equirectangular PNG and reduces it to a width x height mask.
func LoadMaskPNG(path string, width, height int) (*Mask, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return MaskFromImage(img, width, height), nil
}
