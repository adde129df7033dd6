// Package fetch downloads images over HTTP.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/renameio"
	"github.com/klauspost/pgzip"
	"golang.org/x/xerrors"
)

// NotFoundError is returned when the server reports that the requested
// image does not exist.
type NotFoundError struct {
	URL string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: HTTP status 404", e.URL)
}

// A Fetcher downloads url into the local file dest. Implementations
// must not leave a partial file behind on failure.
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string) error
}

// We need to disable transparent compression: with some web servers,
// http.DefaultTransport’s default compression handling results in an
// unwanted gunzip step, which would corrupt a .tar.gz download.
var httpClient = &http.Client{Transport: &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConnsPerHost: 10,
	DisableCompression:  true,
}}

// HTTP is the Fetcher used outside of tests.
type HTTP struct {
	// Client overrides the package-level client when non-nil.
	Client *http.Client
}

func (h *HTTP) client() *http.Client {
	if h.Client != nil {
		return h.Client
	}
	return httpClient
}

// Fetch downloads url into dest. The file only comes into existence
// once the download completed, so an interrupted or failed fetch leaves
// nothing behind.
func (h *HTTP) Fetch(ctx context.Context, url, dest string) error {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return err
	}
	resp, err := h.client().Do(req.WithContext(ctx))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if got, want := resp.StatusCode, http.StatusOK; got != want {
		if got == http.StatusNotFound {
			return &NotFoundError{URL: url}
		}
		return xerrors.Errorf("%s: unexpected HTTP status: got %d (%v), want %d", url, got, resp.Status, want)
	}
	body := io.Reader(resp.Body)
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		zr, err := pgzip.NewReader(resp.Body)
		if err != nil {
			return err
		}
		defer zr.Close()
		body = zr
	}
	f, err := renameio.TempFile("", dest)
	if err != nil {
		return err
	}
	defer f.Cleanup()
	n, err := io.Copy(f, body)
	if err != nil {
		return err
	}
	if n == 0 {
		// An empty archive is a failed download as far as the caller is
		// concerned, never a success.
		return xerrors.Errorf("%s: empty response body", url)
	}
	return f.CloseAtomicallyReplace()
}
