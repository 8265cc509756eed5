package service

import (
	"bytes"
	"compress/gzip"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgrayson/streamtv/internal/models"
	"github.com/tgrayson/streamtv/internal/repository"
)

type fakeChannelRepo struct {
	byNumber map[string]*models.Channel
	updated  []string
}

var _ repository.ChannelRepository = (*fakeChannelRepo)(nil)

func newFakeChannelRepo() *fakeChannelRepo {
	return &fakeChannelRepo{byNumber: make(map[string]*models.Channel)}
}

func (r *fakeChannelRepo) Create(_ context.Context, ch *models.Channel) error {
	if ch.ID.IsZero() {
		ch.ID = models.NewULID()
	}
	r.byNumber[ch.Number] = ch
	return nil
}

func (r *fakeChannelRepo) GetByID(_ context.Context, id models.ULID) (*models.Channel, error) {
	for _, ch := range r.byNumber {
		if ch.ID == id {
			return ch, nil
		}
	}
	return nil, nil
}

func (r *fakeChannelRepo) GetByNumber(_ context.Context, number string) (*models.Channel, error) {
	return r.byNumber[number], nil
}

func (r *fakeChannelRepo) GetAll(_ context.Context) ([]*models.Channel, error) {
	out := make([]*models.Channel, 0, len(r.byNumber))
	for _, ch := range r.byNumber {
		out = append(out, ch)
	}
	return out, nil
}

func (r *fakeChannelRepo) GetEnabled(ctx context.Context) ([]*models.Channel, error) {
	all, _ := r.GetAll(ctx)
	out := all[:0]
	for _, ch := range all {
		if ch.IsEnabled() {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (r *fakeChannelRepo) Update(_ context.Context, ch *models.Channel) error {
	r.byNumber[ch.Number] = ch
	r.updated = append(r.updated, ch.Number)
	return nil
}

func (r *fakeChannelRepo) Delete(_ context.Context, id models.ULID) error { return nil }

func (r *fakeChannelRepo) Count(_ context.Context) (int64, error) {
	return int64(len(r.byNumber)), nil
}

const samplePlaylist = `#EXTM3U
#EXTINF:-1 tvg-chno="42" tvg-name="Cartoons" tvg-logo="http://logos/toons.png" group-title="Kids",Saturday Cartoons
http://example.com/toons.m3u8
#EXTINF:-1 tvg-name="History",History Hour
http://example.com/history.m3u8
#EXTINF:-1,Late Movies
http://example.com/movies.m3u8
`

func TestImportM3UCreatesChannels(t *testing.T) {
	repo := newFakeChannelRepo()
	svc := NewImportService(repo)

	result, err := svc.ImportM3U(context.Background(), strings.NewReader(samplePlaylist), ImportOptions{})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Created)
	assert.Zero(t, result.Skipped)
	assert.Empty(t, result.Errors)

	ch := repo.byNumber["42"]
	require.NotNil(t, ch)
	assert.Equal(t, "Cartoons", ch.Name)
	assert.Equal(t, "Kids", ch.Group)
	assert.Equal(t, "http://logos/toons.png", ch.LogoPath)
	assert.False(t, ch.IsEnabled(), "imported channels start disabled")

	// Entries without tvg-chno number sequentially from the default.
	require.NotNil(t, repo.byNumber["100"])
	assert.Equal(t, "History", repo.byNumber["100"].Name)
	require.NotNil(t, repo.byNumber["101"])
	assert.Equal(t, "Late Movies", repo.byNumber["101"].Name)
}

func TestImportM3USkipsExistingByDefault(t *testing.T) {
	repo := newFakeChannelRepo()
	require.NoError(t, repo.Create(context.Background(), &models.Channel{
		Number: "42", Name: "Original", Enabled: models.BoolPtr(true),
	}))
	svc := NewImportService(repo)

	result, err := svc.ImportM3U(context.Background(), strings.NewReader(samplePlaylist), ImportOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, "Original", repo.byNumber["42"].Name)
}

func TestImportM3UOverwrite(t *testing.T) {
	repo := newFakeChannelRepo()
	require.NoError(t, repo.Create(context.Background(), &models.Channel{
		Number: "42", Name: "Original", Enabled: models.BoolPtr(true),
	}))
	svc := NewImportService(repo)

	result, err := svc.ImportM3U(context.Background(), strings.NewReader(samplePlaylist), ImportOptions{Overwrite: true})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, "Cartoons", repo.byNumber["42"].Name)
	assert.Contains(t, repo.updated, "42")
}

func TestImportM3UStartNumberSkipsTaken(t *testing.T) {
	repo := newFakeChannelRepo()
	require.NoError(t, repo.Create(context.Background(), &models.Channel{
		Number: "200", Name: "Taken", Enabled: models.BoolPtr(true),
	}))
	svc := NewImportService(repo)

	playlist := "#EXTM3U\n#EXTINF:-1,First\nhttp://x/a\n#EXTINF:-1,Second\nhttp://x/b\n"
	result, err := svc.ImportM3U(context.Background(), strings.NewReader(playlist), ImportOptions{StartNumber: 200})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Created)
	assert.Equal(t, "First", repo.byNumber["201"].Name)
	assert.Equal(t, "Second", repo.byNumber["202"].Name)
}

func TestImportM3UEnableOption(t *testing.T) {
	repo := newFakeChannelRepo()
	svc := NewImportService(repo)

	_, err := svc.ImportM3U(context.Background(), strings.NewReader(samplePlaylist), ImportOptions{Enable: true})
	require.NoError(t, err)

	assert.True(t, repo.byNumber["42"].IsEnabled())
}

func TestImportM3UCompressed(t *testing.T) {
	repo := newFakeChannelRepo()
	svc := NewImportService(repo)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(samplePlaylist))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	result, err := svc.ImportM3U(context.Background(), &buf, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Created)
}
