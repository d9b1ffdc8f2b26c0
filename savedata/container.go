// Package savedata persists a world's state as one YAML document on disk.
// Each participant owns a top-level section of the document.
package savedata

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/milk9111/shipweld/tag"
)

var ErrDuplicateParticipant = errors.New("savedata: participant already registered")

// Participant owns one section of the document.
type Participant interface {
	Key() string
	Save() tag.Compound
	Load(doc tag.Compound) error
}

// Container holds the document for one world and the participants writing
// into it. It is not safe for concurrent use.
type Container struct {
	path string
	log  *zap.Logger

	participants map[string]Participant
	order        []string
	raw          tag.Compound
	dirty        bool
	lastHash     uint64
}

func NewContainer(path string, log *zap.Logger) *Container {
	if log == nil {
		log = zap.NewNop()
	}
	return &Container{
		path:         path,
		log:          log,
		participants: make(map[string]Participant),
		raw:          tag.New(),
	}
}

// Path returns the file the container reads and writes.
func (c *Container) Path() string {
	return c.path
}

// Read loads the file into memory. A missing file is an empty document.
// Participants already registered are not reloaded.
func (c *Container) Read() error {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		c.raw = tag.New()
		c.lastHash = 0
		return nil
	}
	if err != nil {
		return fmt.Errorf("read save %s: %w", c.path, err)
	}
	doc := tag.New()
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse save %s: %w", c.path, err)
	}
	if doc == nil {
		doc = tag.New()
	}
	c.raw = doc
	c.lastHash = xxhash.Sum64(data)
	return nil
}

// Register adds p and hands it the section stored under its key, if any.
func (c *Container) Register(p Participant) error {
	key := p.Key()
	if _, ok := c.participants[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateParticipant, key)
	}
	c.participants[key] = p
	c.order = append(c.order, key)

	raw, ok := c.raw[key]
	if !ok {
		return nil
	}
	section, ok := tag.AsCompound(raw)
	if !ok {
		c.log.Warn("ignoring malformed save section", zap.String("key", key), zap.String("path", c.path))
		return nil
	}
	if err := p.Load(section); err != nil {
		return fmt.Errorf("load %s from %s: %w", key, c.path, err)
	}
	return nil
}

// Unregister drops the participant under key. Its last saved section stays
// in the document.
func (c *Container) Unregister(key string) {
	p, ok := c.participants[key]
	if !ok {
		return
	}
	c.raw[key] = p.Save()
	delete(c.participants, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// SetDirty marks the document as needing a write.
func (c *Container) SetDirty() {
	c.dirty = true
}

func (c *Container) Dirty() bool {
	return c.dirty
}

// Document returns the full document: sections of unknown keys as read,
// participants' sections as they are now.
func (c *Container) Document() tag.Compound {
	doc := make(tag.Compound, len(c.raw)+len(c.participants))
	for k, v := range c.raw {
		doc[k] = v
	}
	for _, key := range c.order {
		doc[key] = c.participants[key].Save()
	}
	return doc
}

// Save writes the document if its encoding changed since the last read or
// write. It reports whether the file was written.
func (c *Container) Save() (bool, error) {
	data, err := yaml.Marshal(c.Document())
	if err != nil {
		return false, fmt.Errorf("encode save %s: %w", c.path, err)
	}
	sum := xxhash.Sum64(data)
	if sum == c.lastHash {
		c.dirty = false
		return false, nil
	}
	if err := writeAtomic(c.path, data); err != nil {
		return false, err
	}
	c.lastHash = sum
	c.dirty = false
	c.log.Debug("saved world", zap.String("path", c.path), zap.Int("bytes", len(data)))
	return true, nil
}

// Changed reports whether the file on disk differs from what was last read
// or written, so the container's own writes are not taken for edits.
func (c *Container) Changed() (bool, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return c.lastHash != 0, nil
	}
	if err != nil {
		return false, fmt.Errorf("read save %s: %w", c.path, err)
	}
	return xxhash.Sum64(data) != c.lastHash, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create save dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp save: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return fmt.Errorf("write save %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("write save %s: %w", path, err)
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("replace save %s: %w", path, err)
	}
	return nil
}
