package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"sentiment-globe/internal/config"
	"sentiment-globe/internal/server"
	"sentiment-globe/internal/store"
	"sentiment-globe/internal/texture"
)

func newServeCmd(cfg **config.Config) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the data API and text renderings over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := *cfg
			if cmd.Flags().Changed("addr") {
				c.Server.Addr = addr
			}
			log, closer, err := stderrLogger(c)
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc := newService(ctx, c, log)
			defer svc.Close()
			return server.New(svc, c, nil, log).Run(ctx, c.Server.Addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	return cmd
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	nameStyle   = lipgloss.NewStyle().Width(28)
	countStyle  = lipgloss.NewStyle().Width(8).Align(lipgloss.Right).MarginRight(2)
	cityStyle   = lipgloss.NewStyle().Bold(true).MarginTop(1)
	mutedStyle  = lipgloss.NewStyle().Faint(true)
)

func newListCmd(cfg **config.Config) *cobra.Command {
	var country string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print countries with their news counts and sentiment",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := *cfg
			log, closer, err := stderrLogger(c)
			if err != nil {
				return err
			}
			defer closer.Close()

			svc := newService(cmd.Context(), c, log)
			defer svc.Close()

			countries, origin := svc.FetchCountries(cmd.Context())
			if origin == store.Fallback {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: backend unavailable, showing offline data")
			}
			if country == "" {
				printf(cmd, "%s\n", countryTable(countries))
				return nil
			}

			match, ok := findCountry(countries, country)
			if !ok {
				return fmt.Errorf("no country matches %q", country)
			}
			news, _ := svc.FetchNewsForCountry(cmd.Context(), match.ID)
			printf(cmd, "%s\n", newsListing(match, news))
			return nil
		},
	}
	cmd.Flags().StringVarP(&country, "country", "c", "", "Show the news of one country, by name or id")
	return cmd
}

func countryTable(countries []store.Country) string {
	rows := []string{
		headerStyle.Render(nameStyle.Render("COUNTRY") + countStyle.Render("NEWS") + "SENTIMENT"),
	}
	for _, c := range countries {
		band := lipgloss.NewStyle().Foreground(lipgloss.Color(c.Sentiment.Hex()))
		rows = append(rows, nameStyle.Render(c.Name)+
			countStyle.Render(strconv.Itoa(c.NewsCount))+
			band.Render("● "+c.Sentiment.Title()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func findCountry(countries []store.Country, query string) (store.Country, bool) {
	if id, err := strconv.ParseInt(query, 10, 64); err == nil {
		for _, c := range countries {
			if c.ID == id {
				return c, true
			}
		}
		return store.Country{}, false
	}
	key := store.Key(query)
	for _, c := range countries {
		if store.Key(c.Name) == key {
			return c, true
		}
	}
	return store.Country{}, false
}

func newsListing(c store.Country, news store.NewsByCity) string {
	band := lipgloss.NewStyle().Foreground(lipgloss.Color(c.Sentiment.Hex()))
	var b strings.Builder
	b.WriteString(headerStyle.Render(c.Name))
	fmt.Fprintf(&b, "  %s  %d news\n", band.Render(c.Sentiment.Title()), news.Total())
	if news.Total() == 0 {
		b.WriteString(mutedStyle.Render("No news for this country."))
		return b.String()
	}
	for _, city := range news.Cities() {
		b.WriteString(cityStyle.Render(fmt.Sprintf("%s (%d)", city, len(news[city]))))
		b.WriteString("\n")
		for _, item := range news[city] {
			fmt.Fprintf(&b, "  [%s] %s %s\n", item.Severity, item.Title,
				mutedStyle.Render(item.Timestamp.Format("2006-01-02 15:04")))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func newTexturesCmd(cfg **config.Config) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "textures",
		Short: "Write the synthesized globe textures as PNG files",
		RunE: func(cmd *cobra.Command, args []string) error {
			t := (*cfg).Textures
			paths, err := texture.WritePNGs(dir, texture.NewSynthesizer(t.Width, t.Height, t.Seed))
			for _, p := range paths {
				printf(cmd, "Wrote %s\n", p)
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&dir, "out", "o", "textures", "Output directory")
	return cmd
}

func newMaskCmd() *cobra.Command {
	var width, height int
	cmd := &cobra.Command{
		Use:   "mask <image.png>",
		Short: "Reduce a black-on-white world PNG to the encoded land mask rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := texture.LoadMaskPNG(args[0], width, height)
			if err != nil {
				return err
			}
			for _, row := range m.Encode() {
				printf(cmd, "%q,\n", row)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&width, "width", 360, "Mask width in cells")
	cmd.Flags().IntVar(&height, "height", 180, "Mask height in cells")
	return cmd
}

func newSeedCmd(cfg **config.Config) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a dataset into the postgres or sqlite backend",
		Long: `seed creates the schema if needed and loads the built-in offline dataset, or the
YAML dataset given with --file, into the configured database.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := *cfg
			log, closer, err := stderrLogger(c)
			if err != nil {
				return err
			}
			defer closer.Close()

			data := store.Offline()
			if file != "" {
				raw, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				if data, err = store.ParseDataset(raw); err != nil {
					return fmt.Errorf("parse %s: %w", file, err)
				}
			}

			db, err := openSeeder(cmd.Context(), c, log)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.Seed(cmd.Context(), data); err != nil {
				return err
			}
			printf(cmd, "Seeded %s: %d countries, %d news, %d sentiment rows\n",
				db.Name(), len(data.Countries), len(data.News), len(data.Sentiment))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML dataset to load instead of the built-in one")
	return cmd
}

func newMigrateCmd(cfg **config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the tables of the postgres or sqlite backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := *cfg
			log, closer, err := stderrLogger(c)
			if err != nil {
				return err
			}
			defer closer.Close()

			db, err := openSeeder(cmd.Context(), c, log)
			if err != nil {
				return err
			}
			printf(cmd, "Schema ready on %s\n", db.Name())
			return db.Close()
		},
	}
}
