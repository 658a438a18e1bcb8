package ldfilebackend

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"gopkg.in/ghodss/yaml.v1"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/snapshelf/syncstore/internal/wire"
	"github.com/snapshelf/syncstore/subsystems"
)

const fileMode = 0600

type fileBackend struct {
	path            string
	isYAML          bool
	loggers         ldlog.Loggers
	known           map[string]ldvalue.Value
	lastContent     []byte
	changeHandler   func(map[string]ldvalue.Value)
	closeReloaderCh chan struct{}
	closeOnce       sync.Once
	lock            sync.Mutex
}

func newFileBackend(
	clientContext subsystems.ClientContext,
	path string,
	reloaderFactory ReloaderFactory,
) (*fileBackend, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("unable to determine absolute path for '%s'", path)
	}
	ext := strings.ToLower(filepath.Ext(absPath))
	fb := &fileBackend{
		path:    absPath,
		isYAML:  ext == ".yaml" || ext == ".yml",
		loggers: clientContext.GetLogging().Loggers,
	}
	fb.loggers.SetPrefix("FileBackend:")

	content, values, err := fb.readFile()
	if err != nil {
		fb.loggers.Warnf("Unable to read %s, starting from an empty namespace: %s", absPath, err)
		values = make(map[string]ldvalue.Value)
	}
	fb.known, fb.lastContent = values, content

	if reloaderFactory != nil {
		fb.closeReloaderCh = make(chan struct{})
		if err := reloaderFactory([]string{absPath}, fb.loggers, fb.reload, fb.closeReloaderCh); err != nil {
			fb.loggers.Errorf("Unable to start reloader: %s", err)
		}
	}
	return fb, nil
}

func (fb *fileBackend) BulkRead(ctx context.Context, names []string) (map[string]ldvalue.Value, error) {
	fb.lock.Lock()
	defer fb.lock.Unlock()
	content, values, err := fb.readFile()
	if err != nil {
		return nil, err
	}
	fb.known, fb.lastContent = values, content
	ret := make(map[string]ldvalue.Value, len(names))
	for _, name := range names {
		if v, ok := values[name]; ok {
			ret[name] = v
		}
	}
	return ret, nil
}

// Write merges the values into the current file content and replaces the file. Keys that this
// replica never wrote are preserved even if another program added them since the last read.
func (fb *fileBackend) Write(ctx context.Context, values map[string]ldvalue.Value) error {
	fb.lock.Lock()
	defer fb.lock.Unlock()
	_, current, err := fb.readFile()
	if err != nil {
		return err
	}
	for name, v := range values {
		if v.IsNull() {
			delete(current, name)
		} else {
			current[name] = v
		}
	}
	content, err := fb.serialize(current)
	if err != nil {
		return err
	}
	if err := writeFileAtomically(fb.path, content); err != nil {
		return err
	}
	fb.known, fb.lastContent = current, content
	return nil
}

func (fb *fileBackend) SetExternalChangeHandler(handler func(map[string]ldvalue.Value)) {
	fb.lock.Lock()
	fb.changeHandler = handler
	fb.lock.Unlock()
}

// reload rereads the file and reports every key whose value differs from what was last read or
// written. A key that disappeared is reported as null.
func (fb *fileBackend) reload() {
	fb.lock.Lock()
	content, values, err := fb.readFile()
	if err != nil {
		fb.lock.Unlock()
		fb.loggers.Errorf("Unable to reload %s: %s", fb.path, err)
		return
	}
	if bytes.Equal(content, fb.lastContent) {
		fb.lock.Unlock()
		return
	}
	changed := make(map[string]ldvalue.Value)
	for name, v := range values {
		if old, ok := fb.known[name]; !ok || !old.Equal(v) {
			changed[name] = v
		}
	}
	for name := range fb.known {
		if _, ok := values[name]; !ok {
			changed[name] = ldvalue.Null()
		}
	}
	fb.known, fb.lastContent = values, content
	handler := fb.changeHandler
	fb.lock.Unlock()

	if len(changed) == 0 || handler == nil {
		return
	}
	fb.loggers.Infof("Detected external change to %d value(s) in %s", len(changed), fb.path)
	handler(changed)
}

func (fb *fileBackend) Close() error {
	fb.closeOnce.Do(func() {
		if fb.closeReloaderCh != nil {
			close(fb.closeReloaderCh)
		}
	})
	return nil
}

// readFile returns the raw content and parsed values of the file. A missing file is an empty
// namespace.
func (fb *fileBackend) readFile() ([]byte, map[string]ldvalue.Value, error) {
	content, err := os.ReadFile(fb.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, make(map[string]ldvalue.Value), nil
		}
		return nil, nil, fmt.Errorf("unable to read file: %w", err)
	}
	values, err := parse(content)
	if err != nil {
		return nil, nil, fmt.Errorf("error parsing file %s: %w", fb.path, err)
	}
	return content, values, nil
}

func (fb *fileBackend) serialize(values map[string]ldvalue.Value) ([]byte, error) {
	data := wire.EncodeValues(values)
	if !fb.isYAML {
		return data, nil
	}
	return yaml.JSONToYAML(data)
}

func parse(content []byte) (map[string]ldvalue.Value, error) {
	data := content
	if !detectJSON(content) {
		var err error
		if data, err = yaml.YAMLToJSON(content); err != nil {
			return nil, err
		}
	}
	return wire.DecodeValues(data)
}

func detectJSON(rawData []byte) bool {
	// A valid JSON file for our purposes must be an object, i.e. it must start with '{'
	return strings.HasPrefix(strings.TrimLeftFunc(string(rawData), unicode.IsSpace), "{")
}

func writeFileAtomically(path string, content []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("unable to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	_, err = tmp.Write(content)
	if err == nil {
		err = tmp.Chmod(fileMode)
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmpName, path)
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("unable to write file: %w", err)
	}
	return nil
}

var _ subsystems.ExternalChangeSource = (*fileBackend)(nil)
