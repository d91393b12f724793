package downloader

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/galleryharvest/galleryharvest/internal/harvest"
	storagememory "github.com/galleryharvest/galleryharvest/internal/storage/memory"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newImageServer(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	body := pngBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/missing.png":
			http.NotFound(w, r)
		case "/garbage.bin":
			_, _ = w.Write([]byte("definitely not an image"))
		default:
			_, _ = w.Write(body)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDownloadSuccessPersistsImage(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := newImageServer(t, &hits)
	store := storagememory.New()
	d := New(store, srv.Client(), Config{Workers: 2}, zap.NewNop())

	summary := d.Download(context.Background(), []Request{{URL: srv.URL + "/a.png"}}, false)
	require.Equal(t, 1, summary.Requested)
	require.Len(t, summary.Downloaded, 1)
	require.Empty(t, summary.Failed)
	require.Equal(t, 1, store.Count())
	require.True(t, store.Exists(store.KeyFor(srv.URL+"/a.png")))
}

func TestDownloadIsIdempotentWithoutForce(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := newImageServer(t, &hits)
	store := storagememory.New()
	d := New(store, srv.Client(), Config{}, zap.NewNop())

	url := srv.URL + "/a.png"
	first := d.Download(context.Background(), []Request{{URL: url}}, false)
	require.Len(t, first.Downloaded, 1)
	require.Equal(t, int64(1), hits.Load())

	second := d.Download(context.Background(), []Request{{URL: url}}, false)
	require.Len(t, second.Downloaded, 1)
	require.Equal(t, first.Downloaded[0], second.Downloaded[0])
	require.Equal(t, store.Path(store.KeyFor(url)), second.Downloaded[0])
	require.Equal(t, int64(1), hits.Load(), "second call must perform zero fetches")
}

func TestDownloadForceRefetches(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := newImageServer(t, &hits)
	store := storagememory.New()
	d := New(store, srv.Client(), Config{}, zap.NewNop())

	url := srv.URL + "/a.png"
	d.Download(context.Background(), []Request{{URL: url}}, false)
	d.Download(context.Background(), []Request{{URL: url}}, true)
	require.Equal(t, int64(2), hits.Load())
}

func TestDownloadBatchWithOneFailure(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := newImageServer(t, &hits)
	store := storagememory.New()
	d := New(store, srv.Client(), Config{Workers: 3}, zap.NewNop())

	reqs := []Request{
		{URL: srv.URL + "/a.png"},
		{URL: srv.URL + "/missing.png"},
		{URL: srv.URL + "/b.png"},
	}
	summary := d.Download(context.Background(), reqs, false)
	require.Equal(t, 3, summary.Requested)
	require.Len(t, summary.Downloaded, 2)
	require.Len(t, summary.Failed, 1)
	require.Equal(t, srv.URL+"/missing.png", summary.Failed[0].URL)
	require.Equal(t, harvest.KindHTTP, harvest.KindOf(summary.Failed[0].Err))
}

func TestDownloadClassifiesDecodeFailure(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := newImageServer(t, &hits)
	store := storagememory.New()
	d := New(store, srv.Client(), Config{}, zap.NewNop())

	summary := d.Download(context.Background(), []Request{{URL: srv.URL + "/garbage.bin"}}, false)
	require.Len(t, summary.Failed, 1)
	require.Equal(t, harvest.KindDecode, harvest.KindOf(summary.Failed[0].Err))
	require.Equal(t, 0, store.Count())
}

func TestDownloadNetworkErrorKind(t *testing.T) {
	t.Parallel()

	store := storagememory.New()
	d := New(store, &http.Client{Timeout: 50 * time.Millisecond}, Config{Timeout: 50 * time.Millisecond}, zap.NewNop())

	summary := d.Download(context.Background(), []Request{{URL: "http://127.0.0.1:1/nope.png"}}, false)
	require.Len(t, summary.Failed, 1)
	require.Equal(t, harvest.KindNetwork, harvest.KindOf(summary.Failed[0].Err))
}

func TestJitterSleepBoundsSuccessOnly(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := newImageServer(t, &hits)
	store := storagememory.New()
	d := New(store, srv.Client(), Config{
		MinWait: 30 * time.Millisecond,
		MaxWait: 60 * time.Millisecond,
	}, zap.NewNop())

	url := srv.URL + "/a.png"
	start := time.Now()
	d.Download(context.Background(), []Request{{URL: url}}, false)
	require.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond, "fresh success must jitter-sleep")

	start = time.Now()
	d.Download(context.Background(), []Request{{URL: url}}, false)
	require.Less(t, time.Since(start), 30*time.Millisecond, "cache hit must not sleep")
}
