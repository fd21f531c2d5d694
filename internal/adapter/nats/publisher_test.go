package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/feed"
	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/platform/logger"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockConn struct{ mock.Mock }

func (m *MockConn) PublishMsg(msg *nats.Msg) error {
	args := m.Called(msg)
	return args.Error(0)
}

func TestPublisher_Publish(t *testing.T) {
	conn := new(MockConn)
	p := NewPublisherWithConn(conn, "market.feeds.", logger.NewNop())

	var sent *nats.Msg
	conn.On("PublishMsg", mock.AnythingOfType("*nats.Msg")).
		Run(func(args mock.Arguments) { sent = args.Get(0).(*nats.Msg) }).
		Return(nil).Once()

	ev := feed.Event{Feed: "offers", Type: feed.EventPageLoaded, Kind: feed.FetchNextPage, Generation: 3, Page: 2, Items: 40, HasNextPage: true}
	require.NoError(t, p.Publish(context.Background(), ev))
	conn.AssertExpectations(t)

	require.NotNil(t, sent)
	assert.Equal(t, "market.feeds.feed.page_loaded", sent.Subject)
	var decoded feed.Event
	require.NoError(t, json.Unmarshal(sent.Data, &decoded))
	assert.Equal(t, "offers", decoded.Feed)
	assert.Equal(t, uint64(3), decoded.Generation)
	assert.Equal(t, 40, decoded.Items)
}

func TestPublisher_DefaultPrefixAndError(t *testing.T) {
	conn := new(MockConn)
	p := NewPublisherWithConn(conn, "", logger.NewNop())
	assert.Equal(t, "feedsync.feed.reset", p.Subject(feed.EventReset))

	conn.On("PublishMsg", mock.Anything).Return(errors.New("nats: connection closed")).Once()
	err := p.Publish(context.Background(), feed.Event{Type: feed.EventReset})
	assert.ErrorContains(t, err, "feedsync.feed.reset")
}

func TestNATSHeaderCarrier(t *testing.T) {
	h := make(nats.Header)
	c := NATSHeaderCarrier(h)
	c.Set("traceparent", "00-abc-def-01")
	assert.Equal(t, "00-abc-def-01", c.Get("traceparent"))
	assert.Len(t, c.Keys(), 1)
}
