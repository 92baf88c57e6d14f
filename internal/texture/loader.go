package texture

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

const maxTextureBytes = 32 << 20

// Loader fetches the remote textures for a mount.
type Loader struct {
	Client  *http.Client
	Timeout time.Duration
	URLs    map[Slot]string
	Synth   *Synthesizer
	Log     logrus.FieldLogger
}

func NewLoader(urls map[Slot]string, timeout time.Duration, synth *Synthesizer, log logrus.FieldLogger) *Loader {
	return &Loader{
		Client:  &http.Client{},
		Timeout: timeout,
		URLs:    urls,
		Synth:   synth,
		Log:     log,
	}
}

// LoadAll resolves every slot of set. Slots load concurrently and each failure is
// replaced by a synthesized texture, so LoadAll returns only once all five slots have
// settled. onSlot, if set, is called from the loading goroutines as each slot resolves.
func (l *Loader) LoadAll(ctx context.Context, set *Set, onSlot func(Slot, State)) {
	var g errgroup.Group
	for _, slot := range Slots {
		slot := slot
		g.Go(func() error {
			img, state := l.load(ctx, slot)
			if set.Resolve(slot, img, state) && onSlot != nil {
				onSlot(slot, state)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (l *Loader) load(ctx context.Context, slot Slot) (image.Image, State) {
	log := l.Log.WithField("slot", slot)

	url := l.URLs[slot]
	if url == "" {
		log.Debug("no texture url, synthesizing")
		return l.Synth.Draw(slot), Fallback
	}

	start := time.Now()
	img, err := l.fetch(ctx, url)
	if err != nil {
		log.WithError(err).Warn("texture fetch failed, using generated texture")
		return l.Synth.Draw(slot), Fallback
	}

	log.WithField("took", time.Since(start).Round(time.Millisecond)).Debug("texture loaded")
	return img, Loaded
}

func (l *Loader) fetch(ctx context.Context, url string) (image.Image, error) {
	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get %s: status %d", url, resp.StatusCode)
	}

	img, _, err := image.Decode(io.LimitReader(resp.Body, maxTextureBytes))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	return img, nil
}
