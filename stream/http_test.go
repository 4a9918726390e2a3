package stream

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeDoer serves range requests out of an in-memory buffer, mimicking
// a static file server that honors Range headers.
type fakeDoer struct {
	body    []byte
	reqs    int
	lastHdr http.Header
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	f.reqs++
	f.lastHdr = req.Header.Clone()

	if req.Method == http.MethodHead {
		return &http.Response{
			StatusCode:    http.StatusOK,
			ContentLength: int64(len(f.body)),
			Body:          io.NopCloser(bytes.NewReader(nil)),
		}, nil
	}

	rangeHdr := req.Header.Get("Range")
	if rangeHdr == "" {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewReader(f.body)),
		}, nil
	}

	start, end, err := parseRangeHeader(rangeHdr)
	if err != nil {
		return nil, err
	}
	if end >= len(f.body) {
		end = len(f.body) - 1
	}
	if start >= len(f.body) {
		return &http.Response{StatusCode: http.StatusRequestedRangeNotSatisfiable, Body: io.NopCloser(bytes.NewReader(nil))}, nil
	}

	return &http.Response{
		StatusCode: http.StatusPartialContent,
		Body:       io.NopCloser(bytes.NewReader(f.body[start : end+1])),
	}, nil
}

func parseRangeHeader(h string) (start, end int, err error) {
	h = strings.TrimPrefix(h, "bytes=")
	parts := strings.SplitN(h, "-", 2)
	start, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, err
	}
	end, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func TestHTTPSourceReadUsesCacheSlot(t *testing.T) {
	doer := &fakeDoer{body: bytes.Repeat([]byte("x"), 2000)}
	src := NewHTTPSource("http://example.test/video.mp4", WithDoer(doer), WithKnownSize(int64(len(doer.body))))

	buf := make([]byte, 100)
	require.NoError(t, ReadFull(src, buf))
	require.Equal(t, 1, doer.reqs)

	// A second small read within the cached window should not issue a
	// new request.
	_, err := src.Seek(50, FromStart)
	require.NoError(t, err)
	require.NoError(t, ReadFull(src, buf))
	require.Equal(t, 1, doer.reqs)

	stats := src.Stats()
	require.EqualValues(t, 1, stats.Requests)
	require.EqualValues(t, 1, stats.CacheHits)
}

func TestHTTPSourceReadBeyondCacheIssuesDirectFetch(t *testing.T) {
	big := bytes.Repeat([]byte("y"), cacheCapacity*2)
	doer := &fakeDoer{body: big}
	src := NewHTTPSource("http://example.test/video.mp4", WithDoer(doer), WithKnownSize(int64(len(big))))

	buf := make([]byte, cacheCapacity+10)
	require.NoError(t, ReadFull(src, buf))
	require.Equal(t, 1, doer.reqs)
}

func TestHTTPSourceSizeFetchesHeadWhenUnknown(t *testing.T) {
	doer := &fakeDoer{body: []byte("abcdef")}
	src := NewHTTPSource("http://example.test/video.mp4", WithDoer(doer))

	size, ok, err := src.Size()
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 6, size)
}

func TestHTTPSourceSeekFromEndRequiresKnownSize(t *testing.T) {
	doer := &fakeDoer{body: []byte("abcdef")}
	src := NewHTTPSource("http://example.test/video.mp4", WithDoer(doer), WithKnownSize(6))

	pos, err := src.Seek(-2, FromEnd)
	require.NoError(t, err)
	require.EqualValues(t, 4, pos)
}
