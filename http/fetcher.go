// Package http fetches dataset files over HTTP and forwards queries to
// sources that answer them remotely.
package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fwojciec/docsync"
)

// DefaultProbeTimeout bounds a HEAD request.
const DefaultProbeTimeout = 15 * time.Second

// DefaultHeaderTimeout bounds the wait for response headers of a transfer.
// The body itself may take as long as it needs.
const DefaultHeaderTimeout = 15 * time.Second

// metadataPrefixes are header prefixes that carry dataset metadata.
var metadataPrefixes = []string{"x-amz-meta-", "x-metadata-", "x-meta-"}

// Ensure Fetcher implements docsync.Fetcher at compile time.
var _ docsync.Fetcher = (*Fetcher)(nil)

// Fetcher probes and downloads dataset files with HEAD and GET requests.
type Fetcher struct {
	client        *http.Client
	probeTimeout  time.Duration
	headerTimeout time.Duration
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithProbeTimeout sets the timeout for HEAD requests.
// Defaults to DefaultProbeTimeout (15s) if not specified.
func WithProbeTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.probeTimeout = d
	}
}

// WithHeaderTimeout sets how long a transfer waits for response headers.
// Defaults to DefaultHeaderTimeout (15s) if not specified.
func WithHeaderTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.headerTimeout = d
	}
}

// NewFetcher creates a new HTTP-based Fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		probeTimeout:  DefaultProbeTimeout,
		headerTimeout: DefaultHeaderTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = f.headerTimeout
	f.client = &http.Client{Transport: transport}

	return f
}

// Probe issues a HEAD request and reports what the source says about the
// dataset without transferring it.
func (f *Fetcher) Probe(ctx context.Context, url string) (*docsync.StorageInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, f.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, docsync.Errorf(docsync.EINVALID, "invalid url %q: %v", url, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, docsync.Errorf(docsync.ETRANSPORT, "probe %s: %v", url, err)
	}
	resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, docsync.Errorf(docsync.ETRANSPORT, "HTTP %d for %s", resp.StatusCode, url)
	}

	return storageInfo(resp), nil
}

// Fetch downloads the dataset into w. progress, when set, receives the
// running byte count after every write. The returned info is read from the
// response headers only, so it compares equal to a probe of the same file
// even when the source sends no Content-Length.
func (f *Fetcher) Fetch(ctx context.Context, url string, w io.Writer, progress docsync.TransferFunc) (*docsync.StorageInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, docsync.Errorf(docsync.EINVALID, "invalid url %q: %v", url, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, docsync.Errorf(docsync.ETRANSPORT, "fetch %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, docsync.Errorf(docsync.ETRANSPORT, "HTTP %d for %s", resp.StatusCode, url)
	}

	info := storageInfo(resp)

	pw := &progressWriter{w: w, progress: progress}
	if _, err := io.Copy(pw, resp.Body); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("fetch %s: %w", url, ctx.Err())
		}
		return nil, docsync.Errorf(docsync.ETRANSPORT, "fetch %s: %v", url, err)
	}

	return info, nil
}

// storageInfo reads dataset info from response headers.
func storageInfo(resp *http.Response) *docsync.StorageInfo {
	info := &docsync.StorageInfo{
		Metadata: make(map[string]string),
		Status:   resp.StatusCode,
	}

	for name, values := range resp.Header {
		key := strings.ToLower(name)
		for _, prefix := range metadataPrefixes {
			if strings.HasPrefix(key, prefix) {
				info.Metadata[strings.TrimPrefix(key, prefix)] = strings.Join(values, ",")
				break
			}
		}
	}

	for _, feature := range strings.Split(resp.Header.Get(docsync.FeaturesHeader), ",") {
		if strings.EqualFold(strings.TrimSpace(feature), docsync.FeatureSearcher) {
			info.Remote = true
		}
	}

	if n, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64); err == nil {
		info.Size = n
	} else if resp.ContentLength > 0 {
		info.Size = resp.ContentLength
	}

	return info
}

type progressWriter struct {
	w        io.Writer
	progress docsync.TransferFunc
	n        int64
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.w.Write(p)
	pw.n += int64(n)
	if pw.progress != nil && n > 0 {
		pw.progress(pw.n)
	}
	return n, err
}
