package fetcher

import (
	"bytes"
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/nhien36hk/StudentActivityTracker/internal/metrics"
	"github.com/nhien36hk/StudentActivityTracker/internal/storage/models"
	"github.com/nhien36hk/StudentActivityTracker/pkg/circuitbreaker"
	"github.com/nhien36hk/StudentActivityTracker/pkg/logger"
	"github.com/nhien36hk/StudentActivityTracker/pkg/retry"
	"github.com/nhien36hk/StudentActivityTracker/pkg/textutil"
)

var docIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/document/d/([a-zA-Z0-9_-]+)`),
	regexp.MustCompile(`/file/d/([a-zA-Z0-9_-]+)`),
}

// zip local file header, the magic of every OOXML container.
var zipMagic = []byte("PK\x03\x04")

// Ledger is the append-only record of fetch attempts. A nil ledger
// disables persistence but not fetching.
type Ledger interface {
	AppendFetch(entry *models.FetchLedgerEntry) error
	LastFetch(reference string) (*models.FetchLedgerEntry, error)
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

type Config struct {
	Dir         string
	Workers     int
	MaxAttempts int
	Timeout     time.Duration
	// BaseURL of the document host; overridable for tests.
	BaseURL string
}

type Fetcher struct {
	dir     string
	workers int
	baseURL string
	client  *http.Client
	retry   retry.Config
	breaker *circuitbreaker.CircuitBreaker
	ledger  Ledger
}

func New(cfg Config, ledger Ledger) *Fetcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://docs.google.com"
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = cfg.MaxAttempts
	retryCfg.Logger = logger.Log
	retryCfg.Retryable = isRetryable

	return &Fetcher{
		dir:     cfg.Dir,
		workers: cfg.Workers,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		retry:   retryCfg,
		breaker: circuitbreaker.New("document-host", circuitbreaker.Config{
			FailureThreshold: 5,
			Cooldown:         30 * time.Second,
			Logger:           logger.Log,
		}),
		ledger: ledger,
	}
}

// isRetryable treats network failures, 429 and 5xx as transient.
// Other HTTP statuses are hard failures.
func isRetryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	return true
}

// FetchAll downloads every entry through a fixed worker pool. Each
// download is failure-isolated; the result slice preserves entry order.
func (f *Fetcher) FetchAll(ctx context.Context, entries []models.LinkEntry) []models.FetchedDocument {
	results := make([]models.FetchedDocument, len(entries))

	type job struct {
		idx   int
		entry models.LinkEntry
	}

	jobs := make(chan job)
	var wg sync.WaitGroup

	for i := 0; i < f.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results[j.idx] = f.Fetch(ctx, j.entry)
			}
		}()
	}

	for idx, entry := range entries {
		jobs <- job{idx: idx, entry: entry}
	}
	close(jobs)
	wg.Wait()

	return results
}

// Fetch resolves one link entry to a local document copy. Failures are
// classified into the returned status and recorded in the ledger, never
// raised: one broken document must not stop the batch.
func (f *Fetcher) Fetch(ctx context.Context, entry models.LinkEntry) models.FetchedDocument {
	docID := resolveDocID(entry.Reference)
	if docID == "" {
		logger.Warn("Reference does not resolve to a document id",
			zap.String("reference", entry.Reference),
		)
		return f.record(entry.Reference, "", "", models.StatusNotFound, 0, "unresolvable reference")
	}

	localPath := filepath.Join(f.dir, fmt.Sprintf("%s.docx", textutil.HashString(entry.Reference)))

	if doc, ok := f.cached(entry.Reference, localPath); ok {
		metrics.FetchCacheHits.Inc()
		logger.Debug("Fetch served from cache", zap.String("reference", entry.Reference))
		return doc
	}

	attempts := 0
	body, err := retry.DoWithResult(ctx, f.retry, func() ([]byte, error) {
		attempts++
		if attempts > 1 {
			metrics.FetchRetries.Inc()
		}
		var b []byte
		breakerErr := f.breaker.Execute(func() error {
			var downloadErr error
			b, downloadErr = f.download(ctx, docID)
			return downloadErr
		})
		return b, breakerErr
	})
	if err != nil {
		logger.Warn("Download failed after retries",
			zap.String("reference", entry.Reference),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		return f.record(entry.Reference, "", "", models.StatusNotFound, attempts, err.Error())
	}

	if status, detail := classify(body); status != models.StatusOK {
		logger.Warn("Downloaded content is not a document",
			zap.String("reference", entry.Reference),
			zap.String("detail", detail),
		)
		return f.record(entry.Reference, "", "", status, attempts, detail)
	}

	if err := writeAtomic(localPath, body); err != nil {
		logger.Error("Failed to persist document",
			zap.String("reference", entry.Reference),
			zap.Error(err),
		)
		return f.record(entry.Reference, "", "", models.StatusNotFound, attempts, err.Error())
	}

	checksum := fmt.Sprintf("%x", md5.Sum(body))
	return f.record(entry.Reference, localPath, checksum, models.StatusOK, attempts, "")
}

// cached reports whether a prior successful fetch for this reference is
// still intact on disk, verified against the ledger checksum.
func (f *Fetcher) cached(reference, localPath string) (models.FetchedDocument, bool) {
	data, err := os.ReadFile(localPath)
	if err != nil || !bytes.HasPrefix(data, zipMagic) {
		return models.FetchedDocument{}, false
	}

	if f.ledger != nil {
		last, err := f.ledger.LastFetch(reference)
		if err != nil || last == nil || last.Status != models.StatusOK {
			return models.FetchedDocument{}, false
		}
		if last.Checksum != fmt.Sprintf("%x", md5.Sum(data)) {
			return models.FetchedDocument{}, false
		}
	}

	return models.FetchedDocument{
		Reference: reference,
		LocalPath: localPath,
		Status:    models.StatusOK,
	}, true
}

func (f *Fetcher) download(ctx context.Context, docID string) ([]byte, error) {
	url := fmt.Sprintf("%s/document/d/%s/export?format=docx", f.baseURL, docID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode}
	}

	return io.ReadAll(resp.Body)
}

// classify decides whether a response body is a usable document
// container. Hosts answer dead links with HTML interstitials, which
// must surface as Corrupt rather than be written to disk.
func classify(body []byte) (models.FetchStatus, string) {
	if len(body) == 0 {
		return models.StatusCorrupt, "empty response"
	}
	if bytes.HasPrefix(body, zipMagic) {
		return models.StatusOK, ""
	}

	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
		if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
			return models.StatusCorrupt, fmt.Sprintf("html page: %s", title)
		}
	}

	return models.StatusCorrupt, "not a document container"
}

func (f *Fetcher) record(reference, localPath, checksum string, status models.FetchStatus, attempts int, detail string) models.FetchedDocument {
	metrics.DocumentsFetched.WithLabelValues(string(status)).Inc()

	if f.ledger != nil {
		err := f.ledger.AppendFetch(&models.FetchLedgerEntry{
			Reference: reference,
			LocalPath: localPath,
			Checksum:  checksum,
			Status:    status,
			Attempts:  attempts,
			Detail:    detail,
		})
		if err != nil {
			logger.Error("Failed to record fetch", zap.Error(err))
		}
	}

	return models.FetchedDocument{
		Reference: reference,
		LocalPath: localPath,
		Status:    status,
	}
}

func resolveDocID(reference string) string {
	for _, pattern := range docIDPatterns {
		if m := pattern.FindStringSubmatch(reference); m != nil {
			return m[1]
		}
	}
	return ""
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create download dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move document into place: %w", err)
	}
	return nil
}
