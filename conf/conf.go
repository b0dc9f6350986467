// Package conf stores named filters as YAML or JSON files so they can be
// run by name.
package conf

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/dosco/docfind/core"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownFilter = errors.New("unknown filter")
	ErrReadOnly      = errors.New("filter list is read-only")
)

// DefaultPath is the directory saved filters are read from.
const DefaultPath = "/filters"

// extensions in lookup order
var extensions = []string{".yml", ".yaml", ".json"}

var validName = regexp.MustCompile(`^[A-Za-z0-9_\-]+(\.[A-Za-z0-9_\-]+)*$`)

// Item is a saved filter.
type Item struct {
	Name   string
	Filter *core.Filter
}

type saveReq struct {
	item Item
	done chan error
}

// List reads and writes saved filters below a directory of an afero.Fs.
// Filters returned by Get are shared and must not be modified; use Apply
// to derive a filter for a single call.
type List struct {
	cache    *lru.TwoQueueCache[string, *core.Filter]
	saveChan chan saveReq
	fs       afero.Fs
	path     string
	log      *zap.Logger
}

// New creates a new filter list rooted at path
func New(log *zap.Logger, fs afero.Fs, path string, readOnly bool) (fl *List, err error) {
	if fs == nil {
		return nil, fmt.Errorf("no filesystem defined for the filter list")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if path == "" {
		path = DefaultPath
	}
	fl = &List{fs: fs, path: path, log: log}

	fl.cache, err = lru.New2Q[string, *core.Filter](1000)
	if err != nil {
		return
	}

	if readOnly {
		return
	}
	fl.saveChan = make(chan saveReq)

	go func() {
		for req := range fl.saveChan {
			saveErr := fl.save(req.item)
			if saveErr != nil {
				fl.log.Warn("filter list", zap.String("name", req.item.Name), zap.Error(saveErr))
			}
			req.done <- saveErr
			close(req.done)
		}
	}()

	return fl, err
}

// Path returns the directory the filters live in
func (fl *List) Path() string {
	return fl.path
}

// Close stops the writer of a writable list. It must not run concurrently
// with Set.
func (fl *List) Close() {
	if fl.saveChan != nil {
		close(fl.saveChan)
		fl.saveChan = nil
	}
}

// Set validates and saves a filter under name
func (fl *List) Set(name string, f *core.Filter) error {
	if fl.saveChan == nil {
		return ErrReadOnly
	}
	if f == nil {
		return errors.New("empty filter")
	}

	req := saveReq{
		item: Item{Name: name, Filter: f},
		done: make(chan error, 1),
	}

	fl.saveChan <- req
	return <-req.done
}

// Get returns a filter by name
func (fl *List) Get(name string) (*core.Filter, error) {
	return fl.GetByName(name, true)
}

// GetByName returns a filter by name, reading the file when useCache is
// false or the filter is not cached yet
func (fl *List) GetByName(name string, useCache bool) (f *core.Filter, err error) {
	name = strings.TrimSpace(name)
	if !validName.MatchString(name) {
		return nil, fmt.Errorf("%w: invalid name '%s'", ErrUnknownFilter, name)
	}

	if useCache {
		if v, ok := fl.cache.Get(name); ok {
			return v, nil
		}
	}

	for _, ext := range extensions {
		fp := filepath.Join(fl.path, name+ext)

		var ok bool
		if ok, err = afero.Exists(fl.fs, fp); err != nil {
			return
		} else if !ok {
			continue
		}

		if f, err = fl.read(fp, ext); err != nil {
			return nil, fmt.Errorf("filter '%s': %w", name, err)
		}
		if useCache {
			fl.cache.Add(name, f)
		}
		return
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFilter, name)
}

// Names returns the names of all saved filters in sorted order
func (fl *List) Names() ([]string, error) {
	files, err := afero.ReadDir(fl.fs, fl.path)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(files))
	names := make([]string, 0, len(files))

	for _, fi := range files {
		if fi.IsDir() {
			continue
		}
		ext := filepath.Ext(fi.Name())
		if !isFilterExt(ext) {
			continue
		}
		name := strings.TrimSuffix(fi.Name(), ext)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ListAll returns every saved filter. Filters that fail to load are
// logged and skipped.
func (fl *List) ListAll() ([]Item, error) {
	names, err := fl.Names()
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(names))
	for _, name := range names {
		f, err := fl.GetByName(name, false)
		if err != nil {
			fl.log.Warn("filter list: skipping filter", zap.String("name", name), zap.Error(err))
			continue
		}
		items = append(items, Item{Name: name, Filter: f})
	}
	return items, nil
}

// Reload drops every cached filter so the next Get reads the files again
func (fl *List) Reload() {
	fl.cache.Purge()
}

// Forget drops one cached filter
func (fl *List) Forget(name string) {
	fl.cache.Remove(name)
}

func (fl *List) read(fp, ext string) (*core.Filter, error) {
	b, err := afero.ReadFile(fl.fs, fp)
	if err != nil {
		return nil, err
	}

	var f core.Filter
	if ext == ".json" {
		err = json.Unmarshal(b, &f)
	} else {
		err = yaml.Unmarshal(b, &f)
	}
	if err != nil {
		return nil, err
	}

	if err := core.ValidateFilter(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

// save writes a filter as YAML, replacing any other file of the same name
func (fl *List) save(item Item) (err error) {
	item.Name = strings.TrimSpace(item.Name)
	if !validName.MatchString(item.Name) {
		return fmt.Errorf("invalid filter name '%s'", item.Name)
	}

	if err = core.ValidateFilter(item.Filter); err != nil {
		return
	}

	var b []byte
	if b, err = yaml.Marshal(item.Filter); err != nil {
		return
	}

	if err = fl.fs.MkdirAll(fl.path, 0o755); err != nil {
		return
	}

	for _, ext := range extensions[1:] {
		fp := filepath.Join(fl.path, item.Name+ext)
		if ok, _ := afero.Exists(fl.fs, fp); ok {
			if err = fl.fs.Remove(fp); err != nil {
				return
			}
		}
	}

	fp := filepath.Join(fl.path, item.Name+extensions[0])
	if err = afero.WriteFile(fl.fs, fp, b, 0o644); err != nil {
		return
	}

	fl.cache.Remove(item.Name)
	return nil
}

func isFilterExt(ext string) bool {
	for _, e := range extensions {
		if e == ext {
			return true
		}
	}
	return false
}
