package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/rent-signals/internal/fetcher"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download provider extracts into the raw data directory",
	Long:  "Pulls configured FRED series from the FRED API and the ZORI extract from Zillow. ApartmentList publishes a gated download; place its CSV at the configured path manually.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:    cfg.Fetch.UserAgent,
			Timeout:      time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
			RateLimiters: rateLimiters(),
		})

		if err := fetchZORI(ctx, f); err != nil {
			return err
		}
		if err := fetchFRED(ctx, f); err != nil {
			return err
		}

		fmt.Fprintln(os.Stderr, "Fetch complete.")
		return nil
	},
}

func rateLimiters() map[string]*rate.Limiter {
	limiters := fetcher.DefaultRateLimiters()
	if cfg.Fetch.RatePerSec > 0 {
		for host := range limiters {
			limiters[host] = rate.NewLimiter(rate.Limit(cfg.Fetch.RatePerSec), 2)
		}
	}
	return limiters
}

func fetchZORI(ctx context.Context, f *fetcher.HTTPFetcher) error {
	dest := cfg.Sources.ZORI.Path

	body, err := f.Download(ctx, cfg.Fetch.ZORIURL)
	if err != nil {
		return err
	}
	defer body.Close() //nolint:errcheck

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return eris.Wrap(err, "fetch: create raw dir")
	}
	out, err := os.Create(dest)
	if err != nil {
		return eris.Wrapf(err, "fetch: create %s", dest)
	}
	defer out.Close() //nolint:errcheck

	n, err := io.Copy(out, body)
	if err != nil {
		return eris.Wrap(err, "fetch: write zori extract")
	}

	zap.L().Info("fetch: downloaded zori extract",
		zap.String("path", dest),
		zap.Int64("bytes", n),
	)
	return nil
}

// fredObservations is the shape of the FRED observations endpoint response.
type fredObservations struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
}

// fetchFRED pulls every configured series and writes one long-form CSV.
// FRED reports missing values as "."; those rows are skipped at write time
// so staging sees real nulls only for unparseable cells.
func fetchFRED(ctx context.Context, f *fetcher.HTTPFetcher) error {
	if cfg.Fetch.FREDKey == "" {
		return eris.New("fetch: fetch.fred_api_key is required (https://fred.stlouisfed.org/docs/api/api_key.html)")
	}

	dest := cfg.Sources.FRED.Path
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return eris.Wrap(err, "fetch: create raw dir")
	}
	out, err := os.Create(dest)
	if err != nil {
		return eris.Wrapf(err, "fetch: create %s", dest)
	}
	defer out.Close() //nolint:errcheck

	w := csv.NewWriter(out)
	if err := w.Write([]string{"series_id", "date", "value"}); err != nil {
		return eris.Wrap(err, "fetch: write fred header")
	}

	for _, series := range cfg.Fetch.FREDSeries {
		obs, err := fetchFREDSeries(ctx, f, series)
		if err != nil {
			return err
		}

		var kept, skipped int
		for _, o := range obs.Observations {
			if o.Value == "." {
				skipped++
				continue
			}
			if err := w.Write([]string{series, o.Date, o.Value}); err != nil {
				return eris.Wrapf(err, "fetch: write fred row %s", series)
			}
			kept++
		}

		zap.L().Info("fetch: pulled fred series",
			zap.String("series", series),
			zap.Int("observations", kept),
			zap.Int("missing", skipped),
		)
	}

	w.Flush()
	return eris.Wrap(w.Error(), "fetch: flush fred csv")
}

func fetchFREDSeries(ctx context.Context, f *fetcher.HTTPFetcher, series string) (*fredObservations, error) {
	q := url.Values{}
	q.Set("series_id", series)
	q.Set("api_key", cfg.Fetch.FREDKey)
	q.Set("file_type", "json")

	body, err := f.Download(ctx, "https://api.stlouisfed.org/fred/series/observations?"+q.Encode())
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck

	var obs fredObservations
	if err := json.NewDecoder(body).Decode(&obs); err != nil {
		return nil, eris.Wrapf(err, "fetch: decode fred response %s", series)
	}
	return &obs, nil
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}
