package replica

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldlogtest"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	th "github.com/launchdarkly/go-test-helpers/v3"

	"github.com/snapshelf/syncstore/interfaces"
	"github.com/snapshelf/syncstore/internal/sharedtest"
	"github.com/snapshelf/syncstore/subsystems"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWindow = 20 * time.Millisecond
	timeout    = time.Second
)

type replicaTestParams struct {
	replica    *Replica
	replicated *sharedtest.MockBackend
	local      *sharedtest.MockBackend
	bus        *sharedtest.MockBus
	mockLog    *ldlogtest.MockLog
}

func newTestReplica(id string, replicated, local *sharedtest.MockBackend, bus *sharedtest.MockBus) (*Replica, *ldlogtest.MockLog) {
	mockLog := ldlogtest.NewMockLog()
	mockLog.Loggers.SetMinLevel(ldlog.Debug)
	r := New(Config{
		ID: id,
		Backends: map[interfaces.Class]subsystems.Backend{
			interfaces.ReplicatedClass: replicated,
			interfaces.LocalClass:      local,
		},
		Bus:            bus,
		DebounceWindow: testWindow,
		Loggers:        mockLog.Loggers,
	})
	return r, mockLog
}

func withReplica(t *testing.T, configure func(p *replicaTestParams), action func(p replicaTestParams)) {
	p := replicaTestParams{
		replicated: sharedtest.NewMockBackend(),
		local:      sharedtest.NewMockBackend(),
		bus:        sharedtest.NewMockBus(),
	}
	if configure != nil {
		configure(&p)
	}
	p.replica, p.mockLog = newTestReplica("replica-a", p.replicated, p.local, p.bus)
	defer p.replica.Close()
	defer p.mockLog.DumpIfTestFailed(t)
	action(p)
}

func withReadyReplica(t *testing.T, action func(p replicaTestParams)) {
	withReplica(t, nil, func(p replicaTestParams) {
		th.AssertChannelClosed(t, p.replica.ReadyCh(), timeout, "replica did not become ready")
		action(p)
	})
}

func holdReads(p *replicaTestParams) {
	p.replicated.HoldReads()
	p.local.HoldReads()
}

func TestInitialization(t *testing.T) {
	t.Run("reads each class once with its own keys", func(t *testing.T) {
		withReadyReplica(t, func(p replicaTestParams) {
			replicatedNames := th.RequireValue(t, p.replicated.Reads, timeout)
			localNames := th.RequireValue(t, p.local.Reads, timeout)
			assert.Len(t, replicatedNames, len(interfaces.KeysOf(interfaces.ReplicatedClass)))
			assert.ElementsMatch(t, []string{"access_token", "valid_until"}, localNames)
			th.AssertNoMoreValues(t, p.replicated.Reads, 50*time.Millisecond)
		})
	})

	t.Run("loads stored values", func(t *testing.T) {
		withReplica(t, func(p *replicaTestParams) {
			p.replicated.WithData(map[string]ldvalue.Value{
				"incognito": ldvalue.Bool(true),
				"albums":    ldvalue.ObjectBuild().Set("a1", ldvalue.String("Cats")).Build(),
			})
			p.local.WithData(map[string]ldvalue.Value{"valid_until": ldvalue.Int(1000)})
		}, func(p replicaTestParams) {
			<-p.replica.ReadyCh()
			v, err := p.replica.Get(interfaces.KeyIncognito)
			require.NoError(t, err)
			assert.Equal(t, ldvalue.Bool(true), v)
			v, _ = p.replica.Get(interfaces.KeyValidUntil)
			assert.Equal(t, 1000, v.IntValue())
			albums, err := p.replica.Albums()
			require.NoError(t, err)
			title, _ := albums.Title("a1")
			assert.Equal(t, "Cats", title)
		})
	})

	t.Run("ignores stored values outside the schema or of the wrong kind", func(t *testing.T) {
		withReplica(t, func(p *replicaTestParams) {
			p.replicated.WithData(map[string]ldvalue.Value{"username": ldvalue.Int(3)})
		}, func(p replicaTestParams) {
			<-p.replica.ReadyCh()
			v, err := p.replica.Get(interfaces.KeyUsername)
			require.NoError(t, err)
			assert.True(t, v.IsNull())
			p.mockLog.AssertMessageMatch(t, true, ldlog.Warn, "Ignoring stored value")
		})
	})

	t.Run("state moves from loading to ready", func(t *testing.T) {
		withReplica(t, holdReads, func(p replicaTestParams) {
			assert.Equal(t, interfaces.StateLoading, p.replica.State())
			p.replicated.ReleaseReads()
			th.AssertNoMoreValues(t, p.replica.ReadyCh(), 50*time.Millisecond, "ready after only one class loaded")
			p.local.ReleaseReads()
			th.AssertChannelClosed(t, p.replica.ReadyCh(), timeout)
			assert.Equal(t, interfaces.StateReady, p.replica.State())
		})
	})

	t.Run("read failure leaves replica permanently unready", func(t *testing.T) {
		withReplica(t, func(p *replicaTestParams) {
			p.local.SetReadError(errors.New("sad"))
		}, func(p replicaTestParams) {
			th.AssertNoMoreValues(t, p.replica.ReadyCh(), 100*time.Millisecond)
			assert.Equal(t, interfaces.StateLoading, p.replica.State())
			assert.False(t, p.replica.statusTracker.GetStatus(interfaces.LocalClass).Available)
			p.mockLog.AssertMessageMatch(t, true, ldlog.Error, "will remain uninitialized: sad")
		})
	})
}

func TestAccessBeforeReady(t *testing.T) {
	withReplica(t, holdReads, func(p replicaTestParams) {
		_, err := p.replica.Get(interfaces.KeyIncognito)
		assert.Equal(t, interfaces.NotReadyError{Key: interfaces.KeyIncognito, Operation: "get"}, err)

		err = p.replica.Set(interfaces.KeyIncognito, ldvalue.Bool(true))
		assert.Equal(t, interfaces.NotReadyError{Key: interfaces.KeyIncognito, Operation: "set"}, err)

		_, err = p.replica.Albums()
		assert.IsType(t, interfaces.NotReadyError{}, err)
		assert.IsType(t, interfaces.NotReadyError{}, p.replica.CommitAlbums())

		p.replicated.ReleaseReads()
		p.local.ReleaseReads()
		<-p.replica.ReadyCh()

		v, err := p.replica.Get(interfaces.KeyIncognito)
		require.NoError(t, err)
		assert.True(t, v.IsNull(), "rejected set must not have changed state")
		p.replicated.AssertNoMoreWrites(t, 2*testWindow)
	})
}

func TestUnknownKey(t *testing.T) {
	withReplica(t, holdReads, func(p replicaTestParams) {
		bogus := interfaces.Key(999)
		_, err := p.replica.Get(bogus)
		assert.Equal(t, interfaces.UnknownKeyError{Key: bogus}, err)
		assert.Equal(t, interfaces.UnknownKeyError{Key: bogus}, p.replica.Set(bogus, ldvalue.Bool(true)))
		_, err = p.replica.Get(interfaces.Key(0))
		assert.IsType(t, interfaces.UnknownKeyError{}, err)
	})
}

func TestSetAndGet(t *testing.T) {
	t.Run("read your writes", func(t *testing.T) {
		withReadyReplica(t, func(p replicaTestParams) {
			values := map[interfaces.Key]ldvalue.Value{
				interfaces.KeyIncognito:   ldvalue.Bool(true),
				interfaces.KeyUsername:    ldvalue.String("someone"),
				interfaces.KeyAccessToken: ldvalue.String("tok"),
				interfaces.KeyValidUntil:  ldvalue.Int(12345),
			}
			for k, v := range values {
				require.NoError(t, p.replica.Set(k, v))
				got, err := p.replica.Get(k)
				require.NoError(t, err)
				assert.Equal(t, v, got)
			}
		})
	})

	t.Run("null unsets a key", func(t *testing.T) {
		withReadyReplica(t, func(p replicaTestParams) {
			require.NoError(t, p.replica.Set(interfaces.KeyUsername, ldvalue.String("x")))
			require.NoError(t, p.replica.Set(interfaces.KeyUsername, ldvalue.Null()))
			v, _ := p.replica.Get(interfaces.KeyUsername)
			assert.True(t, v.IsNull())
			assert.Equal(t, map[string]ldvalue.Value{"username": ldvalue.Null()}, p.replicated.RequireWrite(t, timeout))
		})
	})

	t.Run("wrong value kind is rejected", func(t *testing.T) {
		withReadyReplica(t, func(p replicaTestParams) {
			err := p.replica.Set(interfaces.KeyIncognito, ldvalue.String("yes"))
			assert.IsType(t, interfaces.InvalidValueError{}, err)
			err = p.replica.Set(interfaces.KeyValidUntil, ldvalue.Float64(1.5))
			assert.IsType(t, interfaces.InvalidValueError{}, err)
			p.replicated.AssertNoMoreWrites(t, 2*testWindow)
		})
	})
}

func TestDebouncedPersistence(t *testing.T) {
	t.Run("burst of sets produces one write with final values", func(t *testing.T) {
		withReadyReplica(t, func(p replicaTestParams) {
			require.NoError(t, p.replica.Set(interfaces.KeyIncognito, ldvalue.Bool(true)))
			require.NoError(t, p.replica.Set(interfaces.KeyUsername, ldvalue.String("a")))
			require.NoError(t, p.replica.Set(interfaces.KeyIncognito, ldvalue.Bool(false)))
			require.NoError(t, p.replica.Set(interfaces.KeyUsername, ldvalue.String("b")))

			expected := map[string]ldvalue.Value{
				"incognito": ldvalue.Bool(false),
				"username":  ldvalue.String("b"),
			}
			assert.Equal(t, expected, p.replicated.RequireWrite(t, timeout))
			p.replicated.AssertNoMoreWrites(t, 3*testWindow)

			update := p.bus.RequireSent(t, timeout)
			assert.Equal(t, interfaces.StoreUpdate{Sender: "replica-a", Class: interfaces.ReplicatedClass, Values: expected}, update)
		})
	})

	t.Run("each set restarts the quiet window", func(t *testing.T) {
		withReadyReplica(t, func(p replicaTestParams) {
			for i := 0; i < 5; i++ {
				require.NoError(t, p.replica.Set(interfaces.KeyUsername, ldvalue.String("x")))
				time.Sleep(testWindow / 2)
			}
			p.replicated.RequireWrite(t, timeout)
			p.replicated.AssertNoMoreWrites(t, 3*testWindow)
		})
	})

	t.Run("classes flush independently", func(t *testing.T) {
		withReadyReplica(t, func(p replicaTestParams) {
			p.replicated.SetWriteDelay(300 * time.Millisecond)
			require.NoError(t, p.replica.Set(interfaces.KeyIncognito, ldvalue.Bool(true)))
			require.NoError(t, p.replica.Set(interfaces.KeyAccessToken, ldvalue.String("tok")))

			assert.Equal(t, map[string]ldvalue.Value{"access_token": ldvalue.String("tok")},
				p.local.RequireWrite(t, 200*time.Millisecond))
			assert.Equal(t, map[string]ldvalue.Value{"incognito": ldvalue.Bool(true)},
				p.replicated.RequireWrite(t, timeout))
		})
	})

	t.Run("writes of one class happen in flush order", func(t *testing.T) {
		withReadyReplica(t, func(p replicaTestParams) {
			p.replicated.SetWriteDelay(3 * testWindow)
			require.NoError(t, p.replica.Set(interfaces.KeyUsername, ldvalue.String("first")))
			time.Sleep(2 * testWindow)
			require.NoError(t, p.replica.Set(interfaces.KeyUsername, ldvalue.String("second")))

			assert.Equal(t, "first", p.replicated.RequireWrite(t, timeout)["username"].StringValue())
			assert.Equal(t, "second", p.replicated.RequireWrite(t, timeout)["username"].StringValue())
			assert.Equal(t, "second", p.replicated.Data()["username"].StringValue())
		})
	})

	t.Run("a slow broadcast does not let a later flush overtake it", func(t *testing.T) {
		withReadyReplica(t, func(p replicaTestParams) {
			p.bus.HoldSends()
			require.NoError(t, p.replica.Set(interfaces.KeyUsername, ldvalue.String("first")))
			assert.Equal(t, "first", p.replicated.RequireWrite(t, timeout)["username"].StringValue())

			require.NoError(t, p.replica.Set(interfaces.KeyUsername, ldvalue.String("second")))
			time.Sleep(3 * testWindow)
			p.replicated.AssertNoMoreWrites(t, 10*time.Millisecond)

			p.bus.ReleaseSends()
			assert.Equal(t, "first", p.bus.RequireSent(t, timeout).Values["username"].StringValue())
			assert.Equal(t, "second", p.bus.RequireSent(t, timeout).Values["username"].StringValue())
			assert.Equal(t, "second", p.replicated.RequireWrite(t, timeout)["username"].StringValue())
		})
	})

	t.Run("a slow broadcast does not delay the other class", func(t *testing.T) {
		withReadyReplica(t, func(p replicaTestParams) {
			p.bus.HoldSends()
			defer p.bus.ReleaseSends()
			require.NoError(t, p.replica.Set(interfaces.KeyUsername, ldvalue.String("x")))
			p.replicated.RequireWrite(t, timeout)

			require.NoError(t, p.replica.Set(interfaces.KeyAccessToken, ldvalue.String("tok")))
			assert.Equal(t, map[string]ldvalue.Value{"access_token": ldvalue.String("tok")},
				p.local.RequireWrite(t, timeout))
		})
	})

	t.Run("write failure is not retried and does not affect memory or broadcast", func(t *testing.T) {
		withReadyReplica(t, func(p replicaTestParams) {
			p.replicated.SetWriteError(errors.New("disk full"))
			require.NoError(t, p.replica.Set(interfaces.KeyUsername, ldvalue.String("x")))

			p.replicated.RequireWrite(t, timeout)
			p.bus.RequireSent(t, timeout)
			p.replicated.AssertNoMoreWrites(t, 3*testWindow)

			v, _ := p.replica.Get(interfaces.KeyUsername)
			assert.Equal(t, "x", v.StringValue())
			assert.False(t, p.replica.statusTracker.GetStatus(interfaces.ReplicatedClass).Available)
			p.mockLog.AssertMessageMatch(t, true, ldlog.Error, "will not be retried: disk full")
		})
	})
}

func TestAlbums(t *testing.T) {
	withReadyReplica(t, func(p replicaTestParams) {
		albums, err := p.replica.Albums()
		require.NoError(t, err)
		albums.Put("a1", "Cats")
		albums.Put("a2", "Dogs")
		p.replicated.AssertNoMoreWrites(t, 3*testWindow)

		require.NoError(t, p.replica.CommitAlbums())
		written := p.replicated.RequireWrite(t, timeout)
		assert.JSONEq(t, `{"a1":"Cats","a2":"Dogs"}`, written["albums"].JSONString())

		albums.Remove("a1")
		v, err := p.replica.Get(interfaces.KeyAlbums)
		require.NoError(t, err)
		assert.JSONEq(t, `{"a2":"Dogs"}`, v.JSONString())
		assert.JSONEq(t, `{"a1":"Cats","a2":"Dogs"}`, written["albums"].JSONString(), "committed copy must not change")
	})
}

func TestAlbumsReadAsNullUntilSet(t *testing.T) {
	withReadyReplica(t, func(p replicaTestParams) {
		v, err := p.replica.Get(interfaces.KeyAlbums)
		require.NoError(t, err)
		assert.Equal(t, ldvalue.Null(), v)

		albums, _ := p.replica.Albums()
		albums.Put("a1", "Cats")
		albums.Remove("a1")
		v, _ = p.replica.Get(interfaces.KeyAlbums)
		assert.Equal(t, "{}", v.JSONString())

		p.bus.Deliver(interfaces.StoreUpdate{Sender: "replica-b", Class: interfaces.ReplicatedClass,
			Values: map[string]ldvalue.Value{"albums": ldvalue.Null()}})
		v, _ = p.replica.Get(interfaces.KeyAlbums)
		assert.Equal(t, ldvalue.Null(), v)
	})
}

func TestRemoteUpdates(t *testing.T) {
	t.Run("merges values without writing them back", func(t *testing.T) {
		withReadyReplica(t, func(p replicaTestParams) {
			p.bus.Deliver(interfaces.StoreUpdate{
				Sender: "replica-b",
				Class:  interfaces.ReplicatedClass,
				Values: map[string]ldvalue.Value{
					"incognito": ldvalue.Bool(true),
					"albums":    ldvalue.ObjectBuild().Set("x", ldvalue.String("X")).Build(),
				},
			})
			v, _ := p.replica.Get(interfaces.KeyIncognito)
			assert.Equal(t, ldvalue.Bool(true), v)
			albums, _ := p.replica.Albums()
			assert.Equal(t, map[string]string{"x": "X"}, albums.Snapshot())
			p.replicated.AssertNoMoreWrites(t, 3*testWindow)
			th.AssertNoMoreValues(t, p.bus.Sent, 10*time.Millisecond)
		})
	})

	t.Run("ignores own updates", func(t *testing.T) {
		withReadyReplica(t, func(p replicaTestParams) {
			p.bus.Deliver(interfaces.StoreUpdate{Sender: "replica-a", Class: interfaces.ReplicatedClass,
				Values: map[string]ldvalue.Value{"username": ldvalue.String("echo")}})
			v, _ := p.replica.Get(interfaces.KeyUsername)
			assert.True(t, v.IsNull())
		})
	})

	t.Run("ignores keys outside the schema or the update's class", func(t *testing.T) {
		withReadyReplica(t, func(p replicaTestParams) {
			p.bus.Deliver(interfaces.StoreUpdate{Sender: "replica-b", Class: interfaces.ReplicatedClass,
				Values: map[string]ldvalue.Value{
					"nonsense":     ldvalue.Bool(true),
					"access_token": ldvalue.String("wrong class"),
					"username":     ldvalue.String("ok"),
				}})
			v, _ := p.replica.Get(interfaces.KeyAccessToken)
			assert.True(t, v.IsNull())
			v, _ = p.replica.Get(interfaces.KeyUsername)
			assert.Equal(t, "ok", v.StringValue())
		})
	})

	t.Run("update received while loading wins over the loaded value", func(t *testing.T) {
		withReplica(t, func(p *replicaTestParams) {
			holdReads(p)
			p.replicated.WithData(map[string]ldvalue.Value{"username": ldvalue.String("stale"), "no_focus": ldvalue.Bool(true)})
		}, func(p replicaTestParams) {
			p.bus.Deliver(interfaces.StoreUpdate{Sender: "replica-b", Class: interfaces.ReplicatedClass,
				Values: map[string]ldvalue.Value{"username": ldvalue.String("fresh")}})
			p.replicated.ReleaseReads()
			p.local.ReleaseReads()
			<-p.replica.ReadyCh()

			v, _ := p.replica.Get(interfaces.KeyUsername)
			assert.Equal(t, "fresh", v.StringValue())
			v, _ = p.replica.Get(interfaces.KeyNoFocus)
			assert.Equal(t, ldvalue.Bool(true), v)
		})
	})

	t.Run("external backend change is merged", func(t *testing.T) {
		withReadyReplica(t, func(p replicaTestParams) {
			p.local.SimulateExternalChange(map[string]ldvalue.Value{"access_token": ldvalue.String("edited")})
			v, _ := p.replica.Get(interfaces.KeyAccessToken)
			assert.Equal(t, "edited", v.StringValue())
			p.local.AssertNoMoreWrites(t, 3*testWindow)
		})
	})
}

func TestTwoReplicasConverge(t *testing.T) {
	replicated, local := sharedtest.NewMockBackend(), sharedtest.NewMockBackend()
	busA, busB := sharedtest.NewMockBus(), sharedtest.NewMockBus()
	a, _ := newTestReplica("a", replicated, local, busA)
	defer a.Close()
	b, _ := newTestReplica("b", replicated, local, busB)
	defer b.Close()
	<-a.ReadyCh()
	<-b.ReadyCh()

	require.NoError(t, a.Set(interfaces.KeyToClipboard, ldvalue.Bool(true)))
	busB.Deliver(busA.RequireSent(t, timeout))

	v, err := b.Get(interfaces.KeyToClipboard)
	require.NoError(t, err)
	assert.Equal(t, ldvalue.Bool(true), v)
}

func TestOnReady(t *testing.T) {
	t.Run("queued callbacks run once in registration order", func(t *testing.T) {
		withReplica(t, holdReads, func(p replicaTestParams) {
			var lock sync.Mutex
			var calls []int
			done := make(chan struct{})
			for i := 0; i < 5; i++ {
				n := i
				p.replica.OnReady(func() {
					lock.Lock()
					calls = append(calls, n)
					lock.Unlock()
					if n == 4 {
						close(done)
					}
				})
			}
			p.replicated.ReleaseReads()
			p.local.ReleaseReads()
			th.AssertChannelClosed(t, done, timeout)
			lock.Lock()
			assert.Equal(t, []int{0, 1, 2, 3, 4}, calls)
			lock.Unlock()
		})
	})

	t.Run("callback registered after ready runs immediately", func(t *testing.T) {
		withReadyReplica(t, func(p replicaTestParams) {
			require.Eventually(t, func() bool {
				p.replica.lock.Lock()
				defer p.replica.lock.Unlock()
				return !p.replica.drainingListeners
			}, timeout, time.Millisecond)
			called := 0
			p.replica.OnReady(func() { called++ })
			assert.Equal(t, 1, called)
		})
	})

	t.Run("callback registered during queue run goes after earlier ones", func(t *testing.T) {
		withReplica(t, holdReads, func(p replicaTestParams) {
			order := make(chan string, 3)
			p.replica.OnReady(func() {
				order <- "first"
				p.replica.OnReady(func() { order <- "late" })
			})
			p.replica.OnReady(func() { order <- "second" })
			p.replicated.ReleaseReads()
			p.local.ReleaseReads()
			assert.Equal(t, "first", th.RequireValue(t, order, timeout))
			assert.Equal(t, "second", th.RequireValue(t, order, timeout))
			assert.Equal(t, "late", th.RequireValue(t, order, timeout))
		})
	})

	t.Run("callbacks never run if closed before ready", func(t *testing.T) {
		withReplica(t, holdReads, func(p replicaTestParams) {
			called := make(chan struct{}, 1)
			p.replica.OnReady(func() { called <- struct{}{} })
			p.replica.Close()
			p.replicated.ReleaseReads()
			p.local.ReleaseReads()
			th.AssertNoMoreValues(t, called, 100*time.Millisecond)
		})
	})
}

func TestClose(t *testing.T) {
	withReadyReplica(t, func(p replicaTestParams) {
		require.NoError(t, p.replica.Set(interfaces.KeyUsername, ldvalue.String("lost")))
		p.replica.Close()

		p.replicated.AssertNoMoreWrites(t, 3*testWindow)
		th.AssertNoMoreValues(t, p.bus.Sent, 10*time.Millisecond)
		p.mockLog.AssertMessageMatch(t, true, ldlog.Warn, "closed with 1 unsaved value")
		assert.True(t, p.replica.AwaitWrites(timeout))
	})
}

func TestCloseDuringLoadDoesNotReportBackendFailure(t *testing.T) {
	withReplica(t, holdReads, func(p replicaTestParams) {
		statusCh := p.replica.statusTracker.GetBroadcaster().AddListener()
		th.RequireValue(t, p.replicated.Reads, timeout)
		th.RequireValue(t, p.local.Reads, timeout)

		p.replica.Close()
		th.AssertNoMoreValues(t, statusCh, 50*time.Millisecond)
		for _, c := range interfaces.Classes() {
			assert.True(t, p.replica.statusTracker.GetStatus(c).Available)
		}
		p.mockLog.AssertMessageMatch(t, false, ldlog.Error, "Unable to load")
	})
}
