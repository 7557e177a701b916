package binance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/quantbr/perpedge/pkg/core"
	"github.com/stretchr/testify/require"
)

// firehoseStreamer emits kline events in a tight loop until its stop
// channel closes, mimicking a busy websocket during shutdown
func firehoseStreamer(symbol, _ string, handler futures.WsKlineHandler,
	_ futures.ErrHandler) (chan struct{}, chan struct{}, error) {

	done := make(chan struct{})
	stop := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
				handler(&futures.WsKlineEvent{Kline: futures.WsKline{
					Symbol:  symbol,
					Close:   "50000",
					IsFinal: true,
				}})
			}
		}
	}()

	return done, stop, nil
}

func TestStreamCandlesShutdownDuringEvents(t *testing.T) {
	f := &Futures{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	candleChan := make(chan core.Candle)
	errChan := make(chan error)

	finished := make(chan struct{})
	go func() {
		f.streamCandles(ctx, "BTC/USDT", "1m", firehoseStreamer, candleChan, errChan)
		close(finished)
	}()

	// The stream is live: take one candle, then cancel while events are
	// still firing.
	candle := <-candleChan
	require.InDelta(t, 50000.0, candle.Close, 1e-9)
	require.True(t, candle.Complete)

	cancel()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not shut down after cancel")
	}

	// The stream goroutine closed both channels after the handler loop
	// stopped; no event was sent on a closed channel.
	_, open := <-candleChan
	require.False(t, open)
	_, open = <-errChan
	require.False(t, open)
}

func TestStreamCandlesClosesChannelsOnConnectError(t *testing.T) {
	f := &Futures{}

	failing := func(string, string, futures.WsKlineHandler, futures.ErrHandler) (chan struct{}, chan struct{}, error) {
		return nil, nil, errors.New("dial failed")
	}

	candleChan := make(chan core.Candle)
	errChan := make(chan error)

	go f.streamCandles(context.Background(), "BTC/USDT", "1m", failing, candleChan, errChan)

	err := <-errChan
	require.EqualError(t, err, "dial failed")

	_, open := <-errChan
	require.False(t, open)
	_, open = <-candleChan
	require.False(t, open)
}
