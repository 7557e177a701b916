package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/StudioSol/set"
	"github.com/quantbr/perpedge/pkg/core"
	"github.com/quantbr/perpedge/pkg/logger"
)

// DataFeed is one live candle stream with its error channel
type DataFeed struct {
	Data chan core.Candle
	Err  chan error
}

// DataFeedConsumer consumes candles from a feed
type DataFeedConsumer func(core.Candle)

// Subscription is one consumer registration on a feed
type Subscription struct {
	onCandleClose bool
	consumer      DataFeedConsumer
}

// DataFeedSubscription fans exchange candle streams out to consumers. The
// feed set keeps insertion order so streams connect in the order pairs
// were registered.
type DataFeedSubscription struct {
	feeder                  core.Feeder
	Feeds                   *set.LinkedHashSetString
	DataFeeds               map[string]*DataFeed
	SubscriptionsByDataFeed map[string][]Subscription
	log                     logger.Logger
	mu                      sync.RWMutex
}

// NewDataFeed creates a new DataFeedSubscription instance
func NewDataFeed(feeder core.Feeder, log logger.Logger) *DataFeedSubscription {
	return &DataFeedSubscription{
		feeder:                  feeder,
		Feeds:                   set.NewLinkedHashSetString(),
		log:                     log,
		DataFeeds:               make(map[string]*DataFeed),
		SubscriptionsByDataFeed: make(map[string][]Subscription),
	}
}

// feedKey generates a unique key for a pair and timeframe
func (d *DataFeedSubscription) feedKey(pair, timeframe string) string {
	return fmt.Sprintf("%s--%s", pair, timeframe)
}

// pairTimeframeFromKey extracts the pair and timeframe from a feed key
func (d *DataFeedSubscription) pairTimeframeFromKey(key string) (pair, timeframe string) {
	parts := strings.Split(key, "--")
	if len(parts) != 2 {
		return "", ""
	}
	return parts[0], parts[1]
}

// Subscribe registers a consumer for a pair and timeframe
func (d *DataFeedSubscription) Subscribe(pair, timeframe string, consumer DataFeedConsumer, onCandleClose bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := d.feedKey(pair, timeframe)
	d.Feeds.Add(key)
	d.SubscriptionsByDataFeed[key] = append(d.SubscriptionsByDataFeed[key], Subscription{
		onCandleClose: onCandleClose,
		consumer:      consumer,
	})
}

// Preload replays historical candles into all subscriptions of a feed
func (d *DataFeedSubscription) Preload(pair, timeframe string, candles []core.Candle) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	d.log.Infof("preloading %d candles for %s-%s", len(candles), pair, timeframe)
	key := d.feedKey(pair, timeframe)

	// Only complete candles are replayed
	for _, candle := range candles {
		if !candle.Complete {
			continue
		}

		for _, subscription := range d.SubscriptionsByDataFeed[key] {
			subscription.consumer(candle)
		}
	}
}

// Connect opens a candle stream for every registered feed
func (d *DataFeedSubscription) Connect(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.log.Infof("Connecting to the exchange.")

	for feed := range d.Feeds.Iter() {
		pair, timeframe := d.pairTimeframeFromKey(feed)
		ccandle, cerr := d.feeder.CandlesSubscription(ctx, pair, timeframe)
		d.DataFeeds[feed] = &DataFeed{
			Data: ccandle,
			Err:  cerr,
		}
	}
}

// Start connects and begins processing all feeds. With loadSync the call
// blocks until every stream closes.
func (d *DataFeedSubscription) Start(ctx context.Context, loadSync bool) {
	d.Connect(ctx)

	var wg sync.WaitGroup

	d.mu.RLock()
	for key, feed := range d.DataFeeds {
		wg.Add(1)
		go d.processFeed(key, feed, &wg)
	}
	d.mu.RUnlock()

	d.log.Infof("Data feed connected.")

	if loadSync {
		wg.Wait()
	}
}

// processFeed dispatches candles from one stream to its subscribers
func (d *DataFeedSubscription) processFeed(key string, feed *DataFeed, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case candle, ok := <-feed.Data:
			if !ok {
				return
			}

			d.mu.RLock()
			subscriptions := d.SubscriptionsByDataFeed[key]
			d.mu.RUnlock()

			for _, subscription := range subscriptions {
				if subscription.onCandleClose && !candle.Complete {
					continue
				}
				subscription.consumer(candle)
			}

		case err, ok := <-feed.Err:
			if !ok {
				return
			}

			if err != nil {
				d.log.Error("dataFeedSubscription/processFeed: ", err)
			}
		}
	}
}
