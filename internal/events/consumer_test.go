package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockStreamClient struct {
	mock.Mock
}

func (m *MockStreamClient) XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd {
	args := m.Called(ctx, stream, group, start)
	return args.Get(0).(*redis.StatusCmd)
}

func (m *MockStreamClient) XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd {
	args := m.Called(ctx, a)
	return args.Get(0).(*redis.XStreamSliceCmd)
}

func (m *MockStreamClient) XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd {
	args := m.Called(ctx, stream, group, ids)
	return args.Get(0).(*redis.IntCmd)
}

func streamMessage(t *testing.T, id, eventType string, payload ProductRecordedPayload) redis.XMessage {
	t.Helper()
	data, err := json.Marshal(map[string]any{"type": eventType, "payload": payload})
	require.NoError(t, err)
	return redis.XMessage{ID: id, Values: map[string]any{"type": eventType, "data": string(data)}}
}

func newTestConsumer(client StreamClient, handler Handler) *Consumer {
	return NewConsumer(client, handler, ConsumerConfig{
		Stream:  "stream:mercadona_products",
		Group:   "test-group",
		Block:   10 * time.Millisecond,
		Backoff: time.Millisecond,
	}, slog.Default())
}

func TestConsumer_Poll(t *testing.T) {
	ctx := context.Background()

	t.Run("handles and acknowledges recorded products", func(t *testing.T) {
		client := new(MockStreamClient)
		var got []string
		handler := func(_ context.Context, p ProductRecordedPayload) error {
			got = append(got, p.Category+"/"+p.ProductName)
			return nil
		}

		client.On("XReadGroup", ctx, mock.MatchedBy(func(a *redis.XReadGroupArgs) bool {
			return a.Group == "test-group" && a.Streams[0] == "stream:mercadona_products" && a.Streams[1] == ">"
		})).Return(redis.NewXStreamSliceCmdResult([]redis.XStream{{
			Stream: "stream:mercadona_products",
			Messages: []redis.XMessage{
				streamMessage(t, "1-0", "PRODUCT_RECORDED", ProductRecordedPayload{Category: "Frescos", ProductName: "Pollo"}),
				streamMessage(t, "2-0", "PRODUCT_RECORDED", ProductRecordedPayload{Category: "Despensa", ProductName: "Arroz"}),
			},
		}}, nil))
		client.On("XAck", ctx, "stream:mercadona_products", "test-group", []string{"1-0"}).Return(redis.NewIntResult(1, nil))
		client.On("XAck", ctx, "stream:mercadona_products", "test-group", []string{"2-0"}).Return(redis.NewIntResult(1, nil))

		n, err := newTestConsumer(client, handler).Poll(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, []string{"Frescos/Pollo", "Despensa/Arroz"}, got)
		client.AssertExpectations(t)
	})

	t.Run("handler failure leaves the message pending", func(t *testing.T) {
		client := new(MockStreamClient)
		handler := func(context.Context, ProductRecordedPayload) error { return errors.New("sink down") }

		client.On("XReadGroup", ctx, mock.Anything).Return(redis.NewXStreamSliceCmdResult([]redis.XStream{{
			Stream:   "stream:mercadona_products",
			Messages: []redis.XMessage{streamMessage(t, "1-0", "PRODUCT_RECORDED", ProductRecordedPayload{ProductName: "Pollo"})},
		}}, nil))

		n, err := newTestConsumer(client, handler).Poll(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
		client.AssertNotCalled(t, "XAck", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("other event types are acknowledged without handling", func(t *testing.T) {
		client := new(MockStreamClient)
		called := false
		handler := func(context.Context, ProductRecordedPayload) error {
			called = true
			return nil
		}

		client.On("XReadGroup", ctx, mock.Anything).Return(redis.NewXStreamSliceCmdResult([]redis.XStream{{
			Stream:   "stream:mercadona_products",
			Messages: []redis.XMessage{{ID: "1-0", Values: map[string]any{"type": "SOMETHING_ELSE"}}},
		}}, nil))
		client.On("XAck", ctx, "stream:mercadona_products", "test-group", []string{"1-0"}).Return(redis.NewIntResult(1, nil))

		n, err := newTestConsumer(client, handler).Poll(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.False(t, called)
	})

	t.Run("malformed data is not acknowledged", func(t *testing.T) {
		client := new(MockStreamClient)
		client.On("XReadGroup", ctx, mock.Anything).Return(redis.NewXStreamSliceCmdResult([]redis.XStream{{
			Stream:   "stream:mercadona_products",
			Messages: []redis.XMessage{{ID: "1-0", Values: map[string]any{"type": "PRODUCT_RECORDED", "data": "{"}}},
		}}, nil))

		n, err := newTestConsumer(client, func(context.Context, ProductRecordedPayload) error { return nil }).Poll(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
		client.AssertNotCalled(t, "XAck", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("empty read", func(t *testing.T) {
		client := new(MockStreamClient)
		client.On("XReadGroup", ctx, mock.Anything).Return(redis.NewXStreamSliceCmdResult(nil, redis.Nil))

		n, err := newTestConsumer(client, nil).Poll(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestConsumer_Run(t *testing.T) {
	t.Run("existing group is reused", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		client := new(MockStreamClient)

		client.On("XGroupCreateMkStream", mock.Anything, "stream:mercadona_products", "test-group", "0").
			Return(redis.NewStatusResult("", errors.New("BUSYGROUP Consumer Group name already exists")))
		client.On("XReadGroup", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) { cancel() }).
			Return(redis.NewXStreamSliceCmdResult(nil, redis.Nil))

		err := newTestConsumer(client, nil).Run(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("group creation failure", func(t *testing.T) {
		client := new(MockStreamClient)
		client.On("XGroupCreateMkStream", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(redis.NewStatusResult("", errors.New("connection refused")))

		err := newTestConsumer(client, nil).Run(context.Background())
		assert.ErrorContains(t, err, "failed to create consumer group: connection refused")
	})

	t.Run("read errors back off and retry", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		client := new(MockStreamClient)
		calls := 0

		client.On("XGroupCreateMkStream", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(redis.NewStatusResult("OK", nil))
		client.On("XReadGroup", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) {
				calls++
				if calls == 2 {
					cancel()
				}
			}).
			Return(redis.NewXStreamSliceCmdResult(nil, errors.New("i/o timeout")))

		err := newTestConsumer(client, nil).Run(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 2, calls)
	})
}
