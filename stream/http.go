package stream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// cacheCapacity is the fixed size, in bytes, of HTTPSource's single
// range cache slot (spec.md section 4.1).
const cacheCapacity = 4096

// DefaultRequestTimeout is the per-request timeout applied when no
// option overrides it.
const DefaultRequestTimeout = 30 * time.Second

// Doer is the subset of *http.Client this package depends on; it is the
// "HTTP client" external collaborator from spec.md section 6. Any
// RoundTripper-backed client, instrumented or not, satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPOption configures an HTTPSource at construction time.
type HTTPOption func(*HTTPSource)

// WithHeaders sets pass-through headers applied to every request (e.g.
// authorization tokens the caller already holds; this layer never
// negotiates auth itself, per spec.md's non-goals).
func WithHeaders(h http.Header) HTTPOption {
	return func(s *HTTPSource) { s.headers = h.Clone() }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(s *HTTPSource) { s.timeout = d }
}

// WithDoer overrides the HTTP client used to issue requests.
func WithDoer(c Doer) HTTPOption {
	return func(s *HTTPSource) { s.client = c }
}

// WithKnownSize pre-seeds the content length, skipping the initial HEAD
// (or end-relative-seek) fetch. Useful when the caller already knows the
// size from a directory listing.
func WithKnownSize(size int64) HTTPOption {
	return func(s *HTTPSource) {
		s.size = size
		s.sizeKnown = true
	}
}

// HTTPSource is a Source backed by HTTP range requests, with a single
// small cache slot absorbing the common case of many small sequential
// reads (box headers, sample-table entries).
type HTTPSource struct {
	url     string
	headers http.Header
	client  Doer
	timeout time.Duration

	size      int64
	sizeKnown bool
	sizeErr   error

	pos int64

	cacheOffset int64
	cacheBytes  []byte

	stats Stats
	log   zerolog.Logger
}

// NewHTTPSource creates an HTTPSource for url. No network request is
// made until the first Read, Size, or end-relative Seek.
func NewHTTPSource(url string, opts ...HTTPOption) *HTTPSource {
	s := &HTTPSource{
		url:     url,
		client:  http.DefaultClient,
		timeout: DefaultRequestTimeout,
		log:     log.With().Str("component", "stream.http").Str("url", url).Logger(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Size implements Source. The content length is fetched lazily via HEAD
// on first call and cached for the lifetime of the source.
func (s *HTTPSource) Size() (int64, bool, error) {
	if s.sizeKnown {
		return s.size, true, nil
	}
	if s.sizeErr != nil {
		return 0, false, nil
	}
	if err := s.fetchSize(); err != nil {
		s.sizeErr = err
		s.log.Debug().Err(err).Msg("HEAD failed, size unknown")
		return 0, false, nil
	}
	return s.size, true, nil
}

func (s *HTTPSource) fetchSize() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.url, nil)
	if err != nil {
		return errors.Wrap(err, "stream: build HEAD request")
	}
	s.applyHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "stream: HEAD request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("stream: HEAD returned status %d", resp.StatusCode)
	}
	if resp.ContentLength < 0 {
		return errors.New("stream: HEAD response missing Content-Length")
	}

	s.size = resp.ContentLength
	s.sizeKnown = true
	return nil
}

// Seek implements Source. Seeking never touches the network except
// when whence is FromEnd and the size is not yet known.
func (s *HTTPSource) Seek(offset int64, whence Whence) (int64, error) {
	var base int64
	switch whence {
	case FromStart:
		base = 0
	case FromCurrent:
		base = s.pos
	case FromEnd:
		size, ok, err := s.Size()
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, errors.New("stream: cannot seek from end, size unknown")
		}
		base = size
	default:
		return 0, errors.Errorf("stream: invalid whence %d", whence)
	}
	newPos := base + offset
	if newPos < 0 {
		return 0, errors.Errorf("stream: seek to negative position %d", newPos)
	}
	s.pos = newPos
	return s.pos, nil
}

// Read implements Source, following the single-slot cache policy from
// spec.md section 4.1.
func (s *HTTPSource) Read(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	p := s.pos
	n := int64(len(buf))

	if s.cacheBytes != nil && p >= s.cacheOffset && p+n <= s.cacheOffset+int64(len(s.cacheBytes)) {
		start := p - s.cacheOffset
		copy(buf, s.cacheBytes[start:start+n])
		s.stats.CacheHits++
		s.pos += n
		return int(n), nil
	}
	s.stats.CacheMisses++

	if n > cacheCapacity {
		got, err := s.fetchRange(p, p+n-1, buf)
		s.pos += int64(got)
		return got, err
	}

	size, sizeKnown, _ := s.Size()
	end := p + cacheCapacity - 1
	if sizeKnown && end > size-1 {
		end = size - 1
	}
	if end < p {
		// Requested position is at or past a known end of stream.
		return 0, io.EOF
	}

	fetchBuf := make([]byte, end-p+1)
	got, err := s.fetchRange(p, end, fetchBuf)
	if err != nil {
		return 0, err
	}
	s.cacheOffset = p
	s.cacheBytes = fetchBuf[:got]

	if int64(got) < n {
		copy(buf, s.cacheBytes)
		s.pos += int64(got)
		if got == 0 {
			return 0, io.EOF
		}
		return got, nil
	}
	copy(buf, s.cacheBytes[:n])
	s.pos += n
	return int(n), nil
}

// fetchRange issues a single ranged GET for the inclusive byte range
// [start, end] and copies the response body into dst, returning the
// number of bytes copied. It updates request/byte stats unconditionally;
// every call here is a real network request.
func (s *HTTPSource) fetchRange(start, end int64, dst []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return 0, errors.Wrap(err, "stream: build range request")
	}
	s.applyHeaders(req)
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))

	s.stats.Requests++

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, errors.Wrapf(err, "stream: range request bytes=%d-%d failed", start, end)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusPartialContent:
		// Expected path: server honored the Range header.
	case http.StatusOK:
		// Acceptable: full body returned, slice out what we asked for.
		_, copyErr := io.CopyN(io.Discard, resp.Body, start)
		if copyErr != nil && copyErr != io.EOF {
			return 0, errors.Wrap(copyErr, "stream: discarding prefix of full body")
		}
	case http.StatusRequestedRangeNotSatisfiable:
		return 0, io.EOF
	default:
		return 0, errors.Errorf("stream: range request returned status %d", resp.StatusCode)
	}

	n, err := io.ReadFull(resp.Body, dst)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return n, errors.Wrap(err, "stream: reading range response body")
	}
	s.stats.BytesFetched += int64(n)
	return n, nil
}

func (s *HTTPSource) applyHeaders(req *http.Request) {
	for k, vs := range s.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
}

// Stats implements Source.
func (s *HTTPSource) Stats() Stats {
	return s.stats
}
