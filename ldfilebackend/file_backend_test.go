package ldfilebackend

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldlogtest"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/snapshelf/syncstore/interfaces"
	"github.com/snapshelf/syncstore/subsystems"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualReloader struct {
	paths   []string
	reload  func()
	closeCh <-chan struct{}
	lock    sync.Mutex
}

func (m *manualReloader) factory(paths []string, _ ldlog.Loggers, reload func(), closeCh <-chan struct{}) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.paths, m.reload, m.closeCh = paths, reload, closeCh
	return nil
}

func (m *manualReloader) trigger() {
	m.lock.Lock()
	reload := m.reload
	m.lock.Unlock()
	reload()
}

func testContext(mockLog *ldlogtest.MockLog, class interfaces.Class) subsystems.ClientContext {
	return subsystems.BasicClientContext{
		ReplicaID: "test",
		Class:     class,
		Logging:   subsystems.LoggingConfiguration{Loggers: mockLog.Loggers},
	}
}

func buildBackend(t *testing.T, builder *FileBackendBuilder) (subsystems.Backend, *ldlogtest.MockLog) {
	mockLog := ldlogtest.NewMockLog()
	backend, err := builder.Build(testContext(mockLog, interfaces.LocalClass))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = backend.Close()
		mockLog.DumpIfTestFailed(t)
	})
	return backend, mockLog
}

func writeTestFile(t *testing.T, path, content string) {
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func TestReadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.json")
	writeTestFile(t, path, `{"access_token": "abc", "valid_until": 1700000000000, "other": true}`)
	backend, _ := buildBackend(t, Backend().FilePath(path))

	values, err := backend.BulkRead(context.Background(), []string{"access_token", "valid_until", "missing"})
	require.NoError(t, err)
	assert.Equal(t, map[string]ldvalue.Value{
		"access_token": ldvalue.String("abc"),
		"valid_until":  ldvalue.Float64(1700000000000),
	}, values)
}

func TestReadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replicated.yaml")
	writeTestFile(t, path, `
---
incognito: true
username: someone
albums:
  a1: Screenshots
`)
	backend, _ := buildBackend(t, Backend().FilePath(path))

	values, err := backend.BulkRead(context.Background(), []string{"incognito", "username", "albums"})
	require.NoError(t, err)
	assert.Equal(t, ldvalue.Bool(true), values["incognito"])
	assert.Equal(t, ldvalue.String("someone"), values["username"])
	assert.Equal(t, ldvalue.ObjectBuild().SetString("a1", "Screenshots").Build(), values["albums"])
}

func TestMissingFileIsEmpty(t *testing.T) {
	backend, _ := buildBackend(t, Backend().Directory(t.TempDir()))
	values, err := backend.BulkRead(context.Background(), []string{"access_token"})
	require.NoError(t, err)
	assert.Len(t, values, 0)
}

func TestMalformedFileFailsRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.json")
	writeTestFile(t, path, `{"access_token": `)
	backend, mockLog := buildBackend(t, Backend().FilePath(path))

	_, err := backend.BulkRead(context.Background(), []string{"access_token"})
	assert.Error(t, err)
	mockLog.AssertMessageMatch(t, true, ldlog.Warn, "Unable to read")
}

func TestBuildRequiresPath(t *testing.T) {
	_, err := Backend().Build(testContext(ldlogtest.NewMockLog(), interfaces.LocalClass))
	assert.Error(t, err)
	_, err = Backend().Directory(t.TempDir()).Build(testContext(ldlogtest.NewMockLog(), ""))
	assert.Error(t, err)
}

func TestWrite(t *testing.T) {
	t.Run("JSON", func(t *testing.T) {
		dir := t.TempDir()
		backend, _ := buildBackend(t, Backend().Directory(dir))
		require.NoError(t, backend.Write(context.Background(), map[string]ldvalue.Value{
			"access_token": ldvalue.String("abc"),
		}))
		data, err := os.ReadFile(filepath.Join(dir, "local.json"))
		require.NoError(t, err)
		assert.JSONEq(t, `{"access_token":"abc"}`, string(data))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 1, "temporary file should not be left behind")
	})

	t.Run("YAML", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "local.yml")
		backend, _ := buildBackend(t, Backend().FilePath(path))
		require.NoError(t, backend.Write(context.Background(), map[string]ldvalue.Value{
			"access_token": ldvalue.String("abc"),
		}))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "access_token: abc\n", string(data))
	})

	t.Run("merges with existing content and null deletes", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "local.json")
		writeTestFile(t, path, `{"access_token":"abc","valid_until":5,"extra":"kept"}`)
		backend, _ := buildBackend(t, Backend().FilePath(path))
		require.NoError(t, backend.Write(context.Background(), map[string]ldvalue.Value{
			"access_token": ldvalue.Null(),
			"valid_until":  ldvalue.Int(6),
		}))
		values, err := backend.BulkRead(context.Background(), []string{"access_token", "valid_until", "extra"})
		require.NoError(t, err)
		assert.Equal(t, map[string]ldvalue.Value{"valid_until": ldvalue.Int(6), "extra": ldvalue.String("kept")}, values)
	})
}

func TestExternalChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.json")
	writeTestFile(t, path, `{"access_token":"abc","valid_until":5}`)
	reloader := &manualReloader{}
	backend, _ := buildBackend(t, Backend().FilePath(path).Reloader(reloader.factory))
	require.Equal(t, []string{path}, reloader.paths)

	changes := make(chan map[string]ldvalue.Value, 10)
	backend.(subsystems.ExternalChangeSource).SetExternalChangeHandler(func(values map[string]ldvalue.Value) {
		changes <- values
	})

	t.Run("unchanged file is not reported", func(t *testing.T) {
		reloader.trigger()
		assert.Len(t, changes, 0)
	})

	t.Run("own writes are not reported", func(t *testing.T) {
		require.NoError(t, backend.Write(context.Background(), map[string]ldvalue.Value{"access_token": ldvalue.String("def")}))
		reloader.trigger()
		assert.Len(t, changes, 0)
	})

	t.Run("edits are reported as a diff", func(t *testing.T) {
		writeTestFile(t, path, `{"access_token":"def","valid_until":6}`)
		reloader.trigger()
		require.Len(t, changes, 1)
		assert.Equal(t, map[string]ldvalue.Value{"valid_until": ldvalue.Int(6)}, <-changes)
	})

	t.Run("removed keys are reported as null", func(t *testing.T) {
		writeTestFile(t, path, `{"valid_until":6}`)
		reloader.trigger()
		require.Len(t, changes, 1)
		assert.Equal(t, map[string]ldvalue.Value{"access_token": ldvalue.Null()}, <-changes)
	})

	t.Run("unparseable file is not reported", func(t *testing.T) {
		writeTestFile(t, path, `{`)
		reloader.trigger()
		assert.Len(t, changes, 0)
	})

	t.Run("close stops the reloader", func(t *testing.T) {
		require.NoError(t, backend.Close())
		_, open := <-reloader.closeCh
		assert.False(t, open)
	})
}
