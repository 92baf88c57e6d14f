package store

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed fallback.yaml
var fallbackYAML []byte

// Dataset is an in-memory copy of the three tables.
type Dataset struct {
	Countries []Row `yaml:"countries"`
	News      []Row `yaml:"news"`
	Sentiment []Row `yaml:"sentiment"`
}

var (
	offlineOnce sync.Once
	offline     *Dataset
)

// Offline returns a fresh copy of the embedded dataset.
func Offline() *Dataset {
	offlineOnce.Do(func() {
		d, err := ParseDataset(fallbackYAML)
		if err != nil {
			panic(fmt.Sprintf("store: embedded dataset: %v", err))
		}
		offline = d
	})
	return offline.Clone()
}

// ParseDataset reads a dataset in the embedded YAML layout.
func ParseDataset(data []byte) (*Dataset, error) {
	var d Dataset
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse dataset: %w", err)
	}
	return &d, nil
}

func cloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}

func (d *Dataset) Clone() *Dataset {
	return &Dataset{
		Countries: cloneRows(d.Countries),
		News:      cloneRows(d.News),
		Sentiment: cloneRows(d.Sentiment),
	}
}

// NewsFor returns the news rows of one country.
func (d *Dataset) NewsFor(countryID int64) []Row {
	var out []Row
	for _, r := range d.News {
		if id, ok := r.Int("country_id"); ok && id == countryID {
			out = append(out, r.Clone())
		}
	}
	return out
}
