package ldssebus

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	es "github.com/launchdarkly/eventsource"
	"github.com/launchdarkly/ccache"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/snapshelf/syncstore/interfaces"
	"github.com/snapshelf/syncstore/internal/wire"
	"github.com/snapshelf/syncstore/subsystems"

	"golang.org/x/exp/maps"
)

const (
	busPath                  = "/bus/"
	updateEvent              = "update"
	streamReadTimeout        = 5 * time.Minute // the hub sends a heartbeat comment every minute by default
	streamMaxRetryDelay      = 30 * time.Second
	streamRetryResetInterval = 60 * time.Second
	streamJitterRatio        = 0.5
	seenEventsCacheSize      = 1000
	seenEventsTTL            = 10 * time.Minute
	postTimeout              = 10 * time.Second
)

type busConfig struct {
	channelURI            string
	initialReconnectDelay time.Duration
	queueLength           int
}

type sseBus struct {
	cfg          busConfig
	replicaID    string
	headers      http.Header
	postClient   *http.Client
	streamClient *http.Client
	loggers      ldlog.Loggers
	outbox       chan []byte
	seenEvents   *ccache.Cache
	halt         chan struct{}
	cancelStream context.CancelFunc
	senderDone   chan struct{}
	subscribed   bool
	closed       bool
	lock         sync.RWMutex
	closeOnce    sync.Once
}

func newSSEBus(clientContext subsystems.ClientContext, cfg busConfig) *sseBus {
	loggers := clientContext.GetLogging().Loggers
	loggers.SetPrefix("SSEBus:")
	postClient := clientContext.GetHTTP().CreateHTTPClient()
	streamClient := *postClient
	streamClient.Timeout = 0

	b := &sseBus{
		cfg:          cfg,
		replicaID:    clientContext.GetReplicaID(),
		headers:      clientContext.GetHTTP().DefaultHeaders,
		postClient:   postClient,
		streamClient: &streamClient,
		loggers:      loggers,
		outbox:       make(chan []byte, cfg.queueLength),
		seenEvents:   ccache.New(ccache.Configure().MaxSize(seenEventsCacheSize)),
		halt:         make(chan struct{}),
		senderDone:   make(chan struct{}),
	}
	go b.runSender()
	return b
}

// Send queues the update to be posted to the hub, or drops it if the queue is full.
func (b *sseBus) Send(update interfaces.StoreUpdate) {
	data := wire.EncodeStoreUpdate(update)
	b.lock.RLock()
	defer b.lock.RUnlock()
	if b.closed {
		return
	}
	select {
	case b.outbox <- data:
	default:
		b.loggers.Warnf("Outgoing queue is full; dropped an update of %d value(s)", len(update.Values))
	}
}

func (b *sseBus) runSender() {
	defer close(b.senderDone)
	for {
		select {
		case data := <-b.outbox:
			if err := b.post(data); err != nil {
				b.loggers.Warnf("Unable to send update to hub; it will not be retried: %s", err)
			}
		case <-b.halt:
			return
		}
	}
}

func (b *sseBus) post(data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), postTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.channelURI, bytes.NewReader(data))
	if err != nil {
		return err
	}
	if b.headers != nil {
		req.Header = maps.Clone(b.headers)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := b.postClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.ReadAll(res.Body)
		_ = res.Body.Close()
	}()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("HTTP error %d from hub", res.StatusCode)
	}
	return nil
}

// Subscribe connects to the hub's stream. Only the first call has any effect.
func (b *sseBus) Subscribe(handler func(interfaces.StoreUpdate)) {
	b.lock.Lock()
	if b.closed || b.subscribed {
		b.lock.Unlock()
		return
	}
	b.subscribed = true
	ctx, cancel := context.WithCancel(context.Background())
	b.cancelStream = cancel
	b.lock.Unlock()
	go b.subscribe(ctx, handler)
}

// subscribe keeps trying to connect until it succeeds, the hub refuses the connection, or the bus
// is closed.
func (b *sseBus) subscribe(ctx context.Context, handler func(interfaces.StoreUpdate)) {
	defer b.seenEvents.Stop()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.cfg.channelURI, nil)
	if err != nil {
		b.loggers.Errorf("Unable to create a stream request; most likely a bad base URI: %s", err)
		return
	}
	if b.headers != nil {
		req.Header = maps.Clone(b.headers)
	}
	b.loggers.Infof("Connecting to hub stream at %s", b.cfg.channelURI)

	errorHandler := func(err error) es.StreamErrorHandlerResult {
		if ctx.Err() != nil {
			return es.StreamErrorHandlerResult{CloseNow: true}
		}
		if se, ok := err.(es.SubscriptionError); ok && !isHTTPErrorRecoverable(se.Code) {
			b.loggers.Errorf("Hub refused the stream connection with status %d; giving up", se.Code)
			return es.StreamErrorHandlerResult{CloseNow: true}
		}
		b.loggers.Warnf("Error in hub stream connection (will retry): %s", err)
		return es.StreamErrorHandlerResult{CloseNow: false}
	}

	stream, err := es.SubscribeWithRequestAndOptions(req,
		es.StreamOptionHTTPClient(b.streamClient),
		es.StreamOptionReadTimeout(streamReadTimeout),
		es.StreamOptionInitialRetry(b.cfg.initialReconnectDelay),
		es.StreamOptionUseBackoff(streamMaxRetryDelay),
		es.StreamOptionUseJitter(streamJitterRatio),
		es.StreamOptionRetryResetInterval(streamRetryResetInterval),
		es.StreamOptionErrorHandler(errorHandler),
		es.StreamOptionCanRetryFirstConnection(-1),
		es.StreamOptionLogger(b.loggers.ForLevel(ldlog.Debug)),
	)
	if err != nil {
		b.loggers.Errorf("Unable to connect to hub stream: %s", err)
		return
	}
	b.consumeStream(stream, handler)
}

func (b *sseBus) consumeStream(stream *es.Stream, handler func(interfaces.StoreUpdate)) {
	defer func() {
		for range stream.Events {
		}
	}()
	for {
		select {
		case event, ok := <-stream.Events:
			if !ok {
				return
			}
			if event.Event() != updateEvent {
				b.loggers.Debugf("Ignoring unexpected event in stream: %s", event.Event())
				continue
			}
			if id := event.Id(); id != "" {
				if b.seenEvents.Get(id) != nil {
					continue
				}
				b.seenEvents.Set(id, true, seenEventsTTL)
			}
			update, err := wire.DecodeStoreUpdate([]byte(event.Data()))
			if err != nil {
				b.loggers.Errorf("Received malformed update from hub (%s); ignoring it", err)
				continue
			}
			if update.Sender == b.replicaID {
				continue
			}
			if b.isClosed() {
				stream.Close()
				return
			}
			handler(update)
		case <-b.halt:
			stream.Close()
			return
		}
	}
}

func (b *sseBus) Close() error {
	b.closeOnce.Do(func() {
		b.lock.Lock()
		b.closed = true
		subscribed, cancelStream := b.subscribed, b.cancelStream
		b.lock.Unlock()
		if n := len(b.outbox); n > 0 {
			b.loggers.Warnf("Bus closed with %d unsent update(s)", n)
		}
		close(b.halt)
		if subscribed {
			cancelStream()
		} else {
			b.seenEvents.Stop()
		}
		<-b.senderDone
	})
	return nil
}

func (b *sseBus) isClosed() bool {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return b.closed
}

// isHTTPErrorRecoverable returns true if a request that got this status might succeed later.
func isHTTPErrorRecoverable(statusCode int) bool {
	if statusCode >= 400 && statusCode < 500 {
		switch statusCode {
		case 400, 408, 429:
			return true
		default:
			return false
		}
	}
	return true
}
