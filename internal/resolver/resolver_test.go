package resolver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tgrayson/streamtv/internal/config"
	"github.com/tgrayson/streamtv/internal/models"
)

func testResolver(cfg *config.Config) *Resolver {
	if cfg == nil {
		cfg = &config.Config{}
	}
	return New(cfg, nil, nil)
}

type fakeYtdlp struct {
	calls  int
	args   []string
	output string
	err    error
}

func (f *fakeYtdlp) Run(_ context.Context, args ...string) ([]byte, error) {
	f.calls++
	f.args = args
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.output), nil
}

func TestDetectSource(t *testing.T) {
	tests := []struct {
		url  string
		want models.MediaSource
	}{
		{"https://www.youtube.com/watch?v=abc123", models.SourceYouTube},
		{"https://youtu.be/abc123", models.SourceYouTube},
		{"https://archive.org/details/classic_toons/ep1.mp4", models.SourceArchiveOrg},
		{"https://ia801504.us.archive.org/download/x/y.mp4", models.SourceArchiveOrg},
		{"https://ga.video.cdn.pbs.org/videos/nature/hd-1080p.m3u8", models.SourcePBS},
		{"https://plex.local:32400/library/metadata/1234/file.mkv", models.SourcePlex},
		{"plex://movie/5d776b59ad5437001f79c6f8", models.SourcePlex},
		{"https://example.com/video.mp4", models.SourceUnknown},
		{"not a url at all ://", models.SourceUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectSource(tt.url))
		})
	}
}

func TestArchiveDownloadURL(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{
			name: "details form rewritten",
			in:   "https://archive.org/details/classic_toons/episode1.mp4",
			want: "https://archive.org/download/classic_toons/episode1.mp4",
		},
		{
			name: "download form untouched",
			in:   "https://archive.org/download/classic_toons/episode1.mp4",
			want: "https://archive.org/download/classic_toons/episode1.mp4",
		},
		{
			name:    "details page without file",
			in:      "https://archive.org/details/classic_toons",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := archiveDownloadURL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNetscapeCookieHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.txt")
	content := "# Netscape HTTP Cookie File\n" +
		".archive.org\tTRUE\t/\tTRUE\t0\tlogged-in-user\talice%40example.com\n" +
		".archive.org\tTRUE\t/\tTRUE\t0\tlogged-in-sig\tsecret\n" +
		".other.org\tTRUE\t/\tTRUE\t0\tunrelated\tnope\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	header, err := netscapeCookieHeader(path, "archive.org")
	require.NoError(t, err)
	assert.Equal(t, "logged-in-user=alice%40example.com; logged-in-sig=secret", header)
}

func TestResolveArchiveOrgInjectsCookies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.txt")
	content := ".archive.org\tTRUE\t/\tTRUE\t0\tsession\tabc\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	r := testResolver(&config.Config{
		ArchiveOrg: config.ArchiveOrgConfig{UseAuthentication: true, CookiesFile: path},
	})
	item := &models.MediaItem{URL: "https://archive.org/details/toons/ep1.mp4"}

	stream, err := r.Resolve(context.Background(), item, "")
	require.NoError(t, err)
	assert.Equal(t, "https://archive.org/download/toons/ep1.mp4", stream.URL)
	assert.Equal(t, "session=abc", stream.Headers["Cookie"])
	assert.Equal(t, models.SourceArchiveOrg, stream.Source)
}

func TestResolveUnsupportedSource(t *testing.T) {
	r := testResolver(nil)
	_, err := r.Resolve(context.Background(), &models.MediaItem{URL: "https://example.com/a.mp4"}, "")
	assert.ErrorIs(t, err, ErrUnsupportedSource)
}

func TestResolveYouTube(t *testing.T) {
	fake := &fakeYtdlp{output: "https://rr3.googlevideo.com/videoplayback?expire=1\n"}
	r := testResolver(&config.Config{YouTube: config.YouTubeConfig{CookiesFile: "/tmp/yt.txt"}})
	r.ytdlp = fake

	stream, err := r.Resolve(context.Background(), &models.MediaItem{URL: "https://youtu.be/abc"}, "")
	require.NoError(t, err)
	assert.Equal(t, "https://rr3.googlevideo.com/videoplayback?expire=1", stream.URL)
	assert.Equal(t, models.SourceYouTube, stream.Source)
	assert.Contains(t, fake.args, "--cookies")
	assert.Contains(t, fake.args, "/tmp/yt.txt")
}

// Resolving the same URL twice within the TTL must not re-run yt-dlp.
func TestResolveCachesWithinTTL(t *testing.T) {
	fake := &fakeYtdlp{output: "https://stream.example/a\n"}
	r := testResolver(nil)
	r.ytdlp = fake

	now := time.Date(2024, 1, 6, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	item := &models.MediaItem{URL: "https://youtu.be/abc"}
	first, err := r.Resolve(context.Background(), item, "Channel 5")
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), item, "Channel 5")
	require.NoError(t, err)

	assert.Equal(t, first.URL, second.URL)
	assert.Equal(t, 1, fake.calls)

	// A different hint is a different cache key.
	_, err = r.Resolve(context.Background(), item, "Channel 6")
	require.NoError(t, err)
	assert.Equal(t, 2, fake.calls)

	// Expiry forces re-resolution.
	now = now.Add(DefaultCacheTTL + time.Second)
	_, err = r.Resolve(context.Background(), item, "Channel 5")
	require.NoError(t, err)
	assert.Equal(t, 3, fake.calls)
}

func TestResolveInvalidate(t *testing.T) {
	fake := &fakeYtdlp{output: "https://stream.example/a\n"}
	r := testResolver(nil)
	r.ytdlp = fake

	item := &models.MediaItem{URL: "https://youtu.be/abc"}
	_, err := r.Resolve(context.Background(), item, "")
	require.NoError(t, err)

	r.Invalidate(item.URL)
	_, err = r.Resolve(context.Background(), item, "")
	require.NoError(t, err)
	assert.Equal(t, 2, fake.calls)
}

func TestResolvePlex(t *testing.T) {
	cfg := &config.Config{Plex: config.PlexConfig{
		Enabled: true,
		BaseURL: "http://plex.local:32400",
		Token:   "tok123",
	}}

	t.Run("library url gains token", func(t *testing.T) {
		r := testResolver(cfg)
		stream, err := r.Resolve(context.Background(),
			&models.MediaItem{URL: "http://plex.local:32400/library/metadata/42/file.mkv"}, "")
		require.NoError(t, err)
		assert.Contains(t, stream.URL, "X-Plex-Token=tok123")
	})

	t.Run("plex scheme maps onto base url", func(t *testing.T) {
		r := testResolver(cfg)
		stream, err := r.Resolve(context.Background(),
			&models.MediaItem{URL: "plex://library/metadata/42"}, "")
		require.NoError(t, err)
		assert.Contains(t, stream.URL, "http://plex.local:32400/library/metadata/42")
		assert.Contains(t, stream.URL, "X-Plex-Token=tok123")
	})

	t.Run("missing token", func(t *testing.T) {
		r := testResolver(&config.Config{Plex: config.PlexConfig{Enabled: true}})
		_, err := r.Resolve(context.Background(),
			&models.MediaItem{URL: "plex://library/metadata/42"}, "")
		assert.ErrorIs(t, err, ErrAuthRequired)
	})
}

func TestResolvePBSMasterPlaylist(t *testing.T) {
	master := "#EXTM3U\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=640x360\n" +
		"low/index.m3u8\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=4000000,RESOLUTION=1920x1080\n" +
		"hd/index.m3u8\n"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		fmt.Fprint(w, master)
	}))
	defer srv.Close()

	r := testResolver(nil)
	item := &models.MediaItem{URL: srv.URL + "/pbs/nature/master.m3u8"}

	stream, err := r.resolvePBS(context.Background(), item, "")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/pbs/nature/hd/index.m3u8", stream.URL)
}

func TestResolvePBSNonHLSPassthrough(t *testing.T) {
	r := testResolver(nil)
	item := &models.MediaItem{URL: "https://ga.video.cdn.pbs.org/videos/ep.mp4"}
	stream, err := r.resolvePBS(context.Background(), item, "")
	require.NoError(t, err)
	assert.Equal(t, item.URL, stream.URL)
}

func TestResolvePBSUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	r := testResolver(nil)
	_, err := r.resolvePBS(context.Background(), &models.MediaItem{URL: srv.URL + "/gone.m3u8"}, "")
	require.Error(t, err)

	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, http.StatusNotFound, resErr.Status)
}
