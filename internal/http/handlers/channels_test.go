package handlers

import (
	"context"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgrayson/streamtv/internal/models"
)

// recordingChannels wraps stubChannels to capture writes and force errors.
type recordingChannels struct {
	stubChannels
	createErr error
	created   *models.Channel
	updated   *models.Channel
	deleted   []models.ULID
}

func (r *recordingChannels) Create(_ context.Context, ch *models.Channel) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.created = ch
	return nil
}

func (r *recordingChannels) Update(_ context.Context, ch *models.Channel) error {
	r.updated = ch
	return nil
}

func (r *recordingChannels) Delete(_ context.Context, id models.ULID) error {
	r.deleted = append(r.deleted, id)
	return nil
}

func TestChannelHandlerList(t *testing.T) {
	disabled := false
	repo := &recordingChannels{stubChannels: stubChannels{channels: []*models.Channel{
		{Number: "100", Name: "Cartoons"},
		{Number: "200", Name: "Movies", Enabled: &disabled},
	}}}
	h := NewChannelHandler(repo, nil)

	out, err := h.List(context.Background(), &ListChannelsInput{})
	require.NoError(t, err)
	assert.Len(t, out.Body.Channels, 2)

	out, err = h.List(context.Background(), &ListChannelsInput{Enabled: true})
	require.NoError(t, err)
	require.Len(t, out.Body.Channels, 1)
	assert.Equal(t, "100", out.Body.Channels[0].Number)
}

func TestChannelHandlerGetByNumber(t *testing.T) {
	repo := &recordingChannels{stubChannels: stubChannels{channels: []*models.Channel{
		{Number: "100", Name: "Cartoons", Group: "Kids"},
	}}}
	h := NewChannelHandler(repo, nil)

	out, err := h.GetByNumber(context.Background(), &GetChannelInput{Number: "100"})
	require.NoError(t, err)
	assert.Equal(t, "Cartoons", out.Body.Name)
	assert.Equal(t, "Kids", out.Body.Group)

	_, err = h.GetByNumber(context.Background(), &GetChannelInput{Number: "999"})
	require.Error(t, err)
	var statusErr huma.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 404, statusErr.GetStatus())
}

func TestChannelHandlerCreate(t *testing.T) {
	repo := &recordingChannels{}
	h := NewChannelHandler(repo, nil)

	out, err := h.Create(context.Background(), &CreateChannelInput{Body: ChannelRequest{
		Number:      "100",
		Name:        "Cartoons",
		PlayoutMode: "ON_DEMAND",
	}})
	require.NoError(t, err)
	require.NotNil(t, repo.created)
	assert.Equal(t, "100", out.Body.Number)
	assert.Equal(t, "ON_DEMAND", string(repo.created.Mode()))
}

func TestChannelHandlerCreateValidationError(t *testing.T) {
	repo := &recordingChannels{createErr: models.ErrChannelNumberNumeric}
	h := NewChannelHandler(repo, nil)

	_, err := h.Create(context.Background(), &CreateChannelInput{Body: ChannelRequest{
		Number: "abc",
		Name:   "Bad",
	}})
	require.Error(t, err)
	var statusErr huma.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 400, statusErr.GetStatus())
}

func TestChannelHandlerCreateBadProfileID(t *testing.T) {
	h := NewChannelHandler(&recordingChannels{}, nil)

	_, err := h.Create(context.Background(), &CreateChannelInput{Body: ChannelRequest{
		Number:    "100",
		Name:      "Cartoons",
		ProfileID: "not-a-ulid",
	}})
	require.Error(t, err)
	var statusErr huma.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 400, statusErr.GetStatus())
}

func TestChannelHandlerUpdate(t *testing.T) {
	ch := &models.Channel{Number: "100", Name: "Cartoons"}
	repo := &recordingChannels{stubChannels: stubChannels{channels: []*models.Channel{ch}}}
	h := NewChannelHandler(repo, nil)

	enabled := false
	out, err := h.Update(context.Background(), &UpdateChannelInput{
		Number: "100",
		Body: ChannelRequest{
			Number:  "100",
			Name:    "Classic Cartoons",
			Enabled: &enabled,
		},
	})
	require.NoError(t, err)
	require.NotNil(t, repo.updated)
	assert.Equal(t, "Classic Cartoons", out.Body.Name)
	assert.False(t, out.Body.Enabled)
}

func TestChannelHandlerDelete(t *testing.T) {
	ch := &models.Channel{Number: "100", Name: "Cartoons"}
	ch.ID = models.NewULID()
	repo := &recordingChannels{stubChannels: stubChannels{channels: []*models.Channel{ch}}}
	h := NewChannelHandler(repo, nil)

	_, err := h.Delete(context.Background(), &DeleteChannelInput{Number: "100"})
	require.NoError(t, err)
	require.Len(t, repo.deleted, 1)
	assert.Equal(t, ch.ID, repo.deleted[0])

	_, err = h.Delete(context.Background(), &DeleteChannelInput{Number: "999"})
	require.Error(t, err)
}
