package ldssebus

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	es "github.com/launchdarkly/eventsource"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/snapshelf/syncstore/internal/wire"
)

const (
	// DefaultReplayLength is the default number of updates per channel that the hub keeps for clients
	// that reconnect.
	DefaultReplayLength = 100

	// DefaultHeartbeatInterval is the default interval between heartbeat comments on idle streams.
	DefaultHeartbeatInterval = time.Minute

	maxUpdateSize = 1 << 20
)

// HubConfig contains the optional settings for NewHub.
type HubConfig struct {
	// ReplayLength is the number of updates kept per channel; zero means DefaultReplayLength.
	ReplayLength int
	// HeartbeatInterval is the interval between heartbeat comments; zero means
	// DefaultHeartbeatInterval.
	HeartbeatInterval time.Duration
}

// Hub relays updates between the replicas connected to each channel. Its Handler serves
//
//	GET  /bus/{channel}   an SSE stream of "update" events
//	POST /bus/{channel}   publish one update to every stream on the channel
type Hub struct {
	server   *es.Server
	epoch    string
	config   HubConfig
	channels map[string]*replayRepository
	loggers  ldlog.Loggers
	halt     chan struct{}
	lock     sync.Mutex
	closer   sync.Once
}

// NewHub creates a Hub and starts its heartbeat.
func NewHub(config HubConfig, loggers ldlog.Loggers) *Hub {
	if config.ReplayLength <= 0 {
		config.ReplayLength = DefaultReplayLength
	}
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = DefaultHeartbeatInterval
	}
	loggers.SetPrefix("Hub:")
	h := &Hub{
		server:   es.NewServer(),
		epoch:    uuid.NewString()[:8],
		config:   config,
		channels: make(map[string]*replayRepository),
		loggers:  loggers,
		halt:     make(chan struct{}),
	}
	go h.runHeartbeat()
	return h
}

// Handler returns the HTTP handler for the hub's endpoints.
func (h *Hub) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc(busPath+"{channel}", h.getStream).Methods(http.MethodGet)
	router.HandleFunc(busPath+"{channel}", h.postUpdate).Methods(http.MethodPost)
	return router
}

// Channels returns the names of the channels that have been used so far.
func (h *Hub) Channels() []string {
	h.lock.Lock()
	defer h.lock.Unlock()
	ret := make([]string, 0, len(h.channels))
	for name := range h.channels {
		ret = append(ret, name)
	}
	return ret
}

// Close disconnects all streams.
func (h *Hub) Close() error {
	h.closer.Do(func() {
		close(h.halt)
		h.server.Close()
	})
	return nil
}

func (h *Hub) getStream(w http.ResponseWriter, r *http.Request) {
	channel := mux.Vars(r)["channel"]
	h.channel(channel)
	h.loggers.Debugf("Stream opened on channel %s (Last-Event-ID: %q)", channel, r.Header.Get("Last-Event-ID"))
	h.server.Handler(channel)(w, r)
}

func (h *Hub) postUpdate(w http.ResponseWriter, r *http.Request) {
	channel := mux.Vars(r)["channel"]
	body, err := io.ReadAll(io.LimitReader(r.Body, maxUpdateSize))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	update, err := wire.DecodeStoreUpdate(body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(err.Error()))
		return
	}

	repo := h.channel(channel)
	event := repo.add(string(body))
	h.server.Publish([]string{channel}, event)
	h.loggers.Debugf("Relayed update %s from %s (%d value(s)) on channel %s",
		event.id, update.Sender, len(update.Values), channel)
	w.WriteHeader(http.StatusAccepted)
}

// channel returns the replay repository for the channel, registering it the first time.
func (h *Hub) channel(name string) *replayRepository {
	h.lock.Lock()
	defer h.lock.Unlock()
	repo, ok := h.channels[name]
	if !ok {
		repo = newReplayRepository(h.epoch, h.config.ReplayLength)
		h.channels[name] = repo
		h.server.Register(name, repo)
	}
	return repo
}

func (h *Hub) runHeartbeat() {
	ticker := time.NewTicker(h.config.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-h.halt:
			return
		case <-ticker.C:
			channels := h.Channels()
			if len(channels) > 0 {
				h.server.PublishComment(channels, "")
			}
		}
	}
}

type updateEventImpl struct {
	id   string
	seq  uint64
	data string
}

func (e updateEventImpl) Id() string    { return e.id } //nolint:revive,stylecheck
func (e updateEventImpl) Event() string { return updateEvent }
func (e updateEventImpl) Data() string  { return e.data }

// replayRepository keeps the most recent updates of one channel. Event IDs have the form
// "epoch-sequence", so that IDs from before a hub restart are not mistaken for current ones.
type replayRepository struct {
	epoch   string
	maxSize int
	nextSeq uint64
	events  []updateEventImpl
	lock    sync.Mutex
}

func newReplayRepository(epoch string, maxSize int) *replayRepository {
	return &replayRepository{epoch: epoch, maxSize: maxSize, nextSeq: 1}
}

func (r *replayRepository) add(data string) updateEventImpl {
	r.lock.Lock()
	defer r.lock.Unlock()
	event := updateEventImpl{id: fmt.Sprintf("%s-%d", r.epoch, r.nextSeq), seq: r.nextSeq, data: data}
	r.nextSeq++
	r.events = append(r.events, event)
	if len(r.events) > r.maxSize {
		r.events = r.events[len(r.events)-r.maxSize:]
	}
	return event
}

// Replay sends the events that came after lastEventID. Nothing is replayed for an ID from another
// epoch, or one so old that events after it have already been discarded.
func (r *replayRepository) Replay(channel, lastEventID string) chan es.Event {
	out := make(chan es.Event)
	seq, ok := r.parseID(lastEventID)
	r.lock.Lock()
	var replay []updateEventImpl
	if ok && len(r.events) > 0 && seq+1 >= r.events[0].seq {
		for _, e := range r.events {
			if e.seq > seq {
				replay = append(replay, e)
			}
		}
	}
	r.lock.Unlock()
	go func() {
		defer close(out)
		for _, e := range replay {
			out <- e
		}
	}()
	return out
}

func (r *replayRepository) parseID(id string) (uint64, bool) {
	epoch, seqStr, found := strings.Cut(id, "-")
	if !found || epoch != r.epoch {
		return 0, false
	}
	seq, err := strconv.ParseUint(seqStr, 10, 64)
	return seq, err == nil
}
