package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"clinicsched/internal/config"
	appLog "clinicsched/internal/log"
)

const userAgent = "clinicsched/1 (+ics-fetch)"

// Source represents a single ICS subscription source.
type Source struct {
	// ID is an internal identifier (e.g., config ICS ID).
	ID string
	// URL is the ICS endpoint.
	URL string
}

// SourcesFromConfig converts configured feeds. Feeds without an ID use
// their Name, then their position.
func SourcesFromConfig(feeds []config.ICSConfig) []Source {
	out := make([]Source, 0, len(feeds))
	for i, f := range feeds {
		if f.URL == "" {
			continue
		}
		id := f.ID
		if id == "" {
			id = f.Name
		}
		if id == "" {
			id = "ics-" + strconv.Itoa(i+1)
		}
		out = append(out, Source{ID: id, URL: f.URL})
	}
	return out
}

// FetchResult contains the outcome of fetching a single ICS source.
type FetchResult struct {
	Source    Source
	Body      []byte
	FromCache bool // body came from disk (304, or stale after a failure)
}

const (
	maxFeedBytes   = 10 << 20
	fetchWorkers   = 4
	fetchTimeout   = 15 * time.Second
	cacheMetaName  = "meta.json"
	cacheBodyName  = "body.ics"
	cacheDirPerm   = 0o700
	cacheFilePerm  = 0o600
	acceptCalendar = "text/calendar, */*;q=0.5"
)

var errFeedTooLarge = fmt.Errorf("ics feed exceeds %d bytes", maxFeedBytes)

// cacheMeta is the validator state remembered for one feed URL.
type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	Size         int       `json:"size"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// feedCache is the on-disk copy of one feed: a body file plus its
// validators, stored in a directory named after the URL hash.
type feedCache struct {
	dir  string
	meta cacheMeta
	body []byte
}

func (c *feedCache) load() {
	if data, err := os.ReadFile(filepath.Join(c.dir, cacheMetaName)); err == nil {
		_ = json.Unmarshal(data, &c.meta)
	}
	c.body, _ = os.ReadFile(filepath.Join(c.dir, cacheBodyName))
	if len(c.body) == 0 {
		// Validators without a body would turn a 304 into an error.
		c.meta = cacheMeta{}
	}
}

// store replaces the body first so the metadata never describes a body
// that is not on disk.
func (c *feedCache) store(meta cacheMeta, body []byte) error {
	if err := os.MkdirAll(c.dir, cacheDirPerm); err != nil {
		return err
	}
	if err := writeAtomic(filepath.Join(c.dir, cacheBodyName), body); err != nil {
		return err
	}
	meta.Size = len(body)
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	if err := writeAtomic(filepath.Join(c.dir, cacheMetaName), data); err != nil {
		return err
	}
	c.meta, c.body = meta, body
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(cacheFilePerm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Fetcher downloads ICS feeds with conditional requests (ETag and
// Last-Modified) and keeps the last good body on disk so a failing feed
// keeps rendering.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

// NewFetcher creates a Fetcher caching under cacheDir, one subdirectory per
// feed URL. An empty cacheDir uses ./var/ics-cache.
func NewFetcher(cacheDir string) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./var/ics-cache"
	}
	return &Fetcher{
		client:   &http.Client{Timeout: fetchTimeout},
		cacheDir: cacheDir,
	}
}

// FetchAll fetches sources concurrently. Results keep the order of
// sources and only hold feeds that produced a body; failures are logged
// and returned in errs.
func (f *Fetcher) FetchAll(ctx context.Context, sources []Source) ([]FetchResult, []error) {
	type outcome struct {
		res FetchResult
		err error
	}
	outcomes := make([]outcome, len(sources))

	var wg sync.WaitGroup
	sem := make(chan struct{}, fetchWorkers)
	for i, src := range sources {
		i, src := i, src
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			res, err := f.FetchOne(ctx, src)
			outcomes[i] = outcome{res: res, err: err}
		}()
	}
	wg.Wait()

	results := make([]FetchResult, 0, len(sources))
	var errs []error
	for i, o := range outcomes {
		if o.err != nil {
			appLog.Error("ics fetch failed", o.err, "id", sources[i].ID, "url", redactURL(sources[i].URL))
			errs = append(errs, fmt.Errorf("%s: %w", sources[i].ID, o.err))
			continue
		}
		results = append(results, o.res)
	}
	return results, errs
}

// FetchOne fetches a single source. A 304 answers from the disk cache; a
// network error or non-2xx status falls back to the cached body when one
// exists.
func (f *Fetcher) FetchOne(ctx context.Context, src Source) (FetchResult, error) {
	if src.URL == "" {
		return FetchResult{}, errors.New("source URL is empty")
	}
	cache := f.cacheFor(src.URL)
	cache.load()

	stale := func(cause error) (FetchResult, error) {
		if len(cache.body) == 0 {
			return FetchResult{}, cause
		}
		appLog.Warn("ics fetch failed, serving cached body", "id", src.ID, "url", redactURL(src.URL), "cause", cause.Error(), "cached_at", cache.meta.UpdatedAt)
		return FetchResult{Source: src, Body: cache.body, FromCache: true}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptCalendar)
	if cache.meta.ETag != "" {
		req.Header.Set("If-None-Match", cache.meta.ETag)
	}
	if cache.meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", cache.meta.LastModified)
	}

	appLog.Debug("ics fetch start", "id", src.ID, "url", redactURL(src.URL))
	resp, err := f.client.Do(req)
	if err != nil {
		return stale(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		if len(cache.body) == 0 {
			return FetchResult{}, errors.New("304 Not Modified without a cached body")
		}
		appLog.Info("ics feed not modified", "id", src.ID, "url", redactURL(src.URL))
		return FetchResult{Source: src, Body: cache.body, FromCache: true}, nil

	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return stale(fmt.Errorf("unexpected status %s", resp.Status))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes+1))
	if err != nil {
		return stale(err)
	}
	if len(body) > maxFeedBytes {
		return stale(errFeedTooLarge)
	}

	meta := cacheMeta{
		URL:          src.URL,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}
	if err := cache.store(meta, body); err != nil {
		appLog.Error("ics cache save failed", err, "id", src.ID, "url", redactURL(src.URL))
	}
	appLog.Info("ics feed fetched", "id", src.ID, "url", redactURL(src.URL), "status", resp.StatusCode, "bytes", len(body))
	return FetchResult{Source: src, Body: body}, nil
}

func (f *Fetcher) cacheFor(rawURL string) *feedCache {
	sum := sha256.Sum256([]byte(rawURL))
	return &feedCache{dir: filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))}
}

// redactURL hides sensitive parts of an ICS URL for logging purposes.
// Private calendar links embed secrets in the path or query, so only the
// scheme and host survive:
//
//	https://example.com/path/to/private.ics?token=abcd
//	-> https://example.com/...(redacted)
func redactURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "ics://...(redacted)"
	}
	return parsed.Scheme + "://" + parsed.Host + "/...(redacted)"
}
