package slack

import (
	"context"
	"errors"
	"testing"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/scribe/internal/core/domain"
	"github.com/custodia-labs/scribe/internal/core/ports/driven"
)

type fakeAPI struct {
	channels []slackapi.Channel
	// history pages per channel, served in order
	pages   map[string][]*slackapi.GetConversationHistoryResponse
	served  map[string]int
	authErr error
	histErr error

	historyParams []*slackapi.GetConversationHistoryParameters
}

func (f *fakeAPI) AuthTestContext(context.Context) (*slackapi.AuthTestResponse, error) {
	if f.authErr != nil {
		return nil, f.authErr
	}
	return &slackapi.AuthTestResponse{UserID: "U1"}, nil
}

func (f *fakeAPI) GetConversationsContext(_ context.Context, _ *slackapi.GetConversationsParameters) ([]slackapi.Channel, string, error) {
	return f.channels, "", nil
}

func (f *fakeAPI) GetConversationHistoryContext(_ context.Context, params *slackapi.GetConversationHistoryParameters) (*slackapi.GetConversationHistoryResponse, error) {
	if f.histErr != nil {
		return nil, f.histErr
	}
	f.historyParams = append(f.historyParams, params)
	if f.served == nil {
		f.served = make(map[string]int)
	}
	i := f.served[params.ChannelID]
	f.served[params.ChannelID]++
	pages := f.pages[params.ChannelID]
	if i >= len(pages) {
		return &slackapi.GetConversationHistoryResponse{}, nil
	}
	return pages[i], nil
}

func msg(ts, user, text string) slackapi.Message {
	m := slackapi.Message{}
	m.Timestamp = ts
	m.User = user
	m.Text = text
	return m
}

func collect(t *testing.T, e *Exporter, filter driven.ExportFilter) ([]domain.RawRecord, error) {
	t.Helper()
	records, errs := e.Export(context.Background(), filter)
	var out []domain.RawRecord
	for rec := range records {
		out = append(out, rec)
	}
	return out, <-errs
}

func TestExportPaginatesChannelHistory(t *testing.T) {
	page1 := &slackapi.GetConversationHistoryResponse{
		HasMore:  true,
		Messages: []slackapi.Message{msg("1750000002.000100", "U2", "second")},
	}
	page1.ResponseMetaData.NextCursor = "cur1"
	page2 := &slackapi.GetConversationHistoryResponse{
		Messages: []slackapi.Message{msg("1750000001.000000", "U1", "first")},
	}

	api := &fakeAPI{pages: map[string][]*slackapi.GetConversationHistoryResponse{
		"C1": {page1, page2},
	}}
	e := &Exporter{cfg: Config{Channels: []string{"C1"}}, client: api}

	out, err := collect(t, e, driven.ExportFilter{})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "C1-1750000002.000100", out[0].ID)
	assert.Equal(t, "U2", out[0].Author)
	assert.Equal(t, domain.CollectionChat, out[0].Collection)
	assert.Equal(t, "first", out[1].Text)
	assert.Equal(t, "cur1", api.historyParams[1].Cursor)
}

func TestExportSkipsNoiseSubtypes(t *testing.T) {
	joined := msg("1750000003.000000", "U3", "joined the channel")
	joined.SubType = "channel_join"
	page := &slackapi.GetConversationHistoryResponse{
		Messages: []slackapi.Message{joined, msg("1750000004.000000", "U4", "real message")},
	}
	api := &fakeAPI{pages: map[string][]*slackapi.GetConversationHistoryResponse{"C1": {page}}}
	e := &Exporter{cfg: Config{Channels: []string{"C1"}}, client: api}

	out, err := collect(t, e, driven.ExportFilter{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "real message", out[0].Text)
}

func TestExportPassesWindowAsOldestLatest(t *testing.T) {
	page := &slackapi.GetConversationHistoryResponse{}
	api := &fakeAPI{pages: map[string][]*slackapi.GetConversationHistoryResponse{"C1": {page}}}
	e := &Exporter{cfg: Config{Channels: []string{"C1"}}, client: api}

	since := time.Unix(1750000000, 0).UTC()
	until := time.Unix(1750086400, 0).UTC()
	_, err := collect(t, e, driven.ExportFilter{Since: since, Until: until})
	require.NoError(t, err)

	require.Len(t, api.historyParams, 1)
	assert.Equal(t, "1750000000.000000", api.historyParams[0].Oldest)
	assert.Equal(t, "1750086400.000000", api.historyParams[0].Latest)
}

func TestValidateMapsAuthErrors(t *testing.T) {
	e := &Exporter{cfg: Config{Token: "x"}, client: &fakeAPI{authErr: errors.New("invalid_auth")}}
	err := e.Validate(context.Background())
	assert.ErrorIs(t, err, domain.ErrAuthInvalid)

	missing := New(Config{})
	assert.ErrorIs(t, missing.Validate(context.Background()), domain.ErrAuthRequired)
}

func TestExportMapsRateLimitError(t *testing.T) {
	api := &fakeAPI{histErr: &slackapi.RateLimitedError{RetryAfter: 3 * time.Second}}
	e := &Exporter{cfg: Config{Channels: []string{"C1"}}, client: api}

	_, err := collect(t, e, driven.ExportFilter{})
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestParseSlackTimestamp(t *testing.T) {
	assert.Equal(t, time.Unix(1750000002, 100*1000).UTC(), parseSlackTimestamp("1750000002.000100"))
	assert.True(t, parseSlackTimestamp("garbage").IsZero())
}
