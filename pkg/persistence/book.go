package persistence

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// BookVersion is the current version of the address book format.
const BookVersion = 1

// Robot is one remembered robot.
type Robot struct {
	// Name is the robot's advertised Bluetooth name, the key used to
	// look it up.
	Name string `yaml:"name"`

	// Address is where to dial: a serial device path for direct RFCOMM
	// links or host:port for a bridge.
	Address string `yaml:"address"`

	// Kind distinguishes hardware generations ("sphero", "sprk", ...).
	Kind string `yaml:"kind,omitempty"`

	// Color is the preferred LED color as RRGGBB hex.
	Color string `yaml:"color,omitempty"`

	// Notes is free text.
	Notes string `yaml:"notes,omitempty"`

	// LastConnected is when a connection to this robot last succeeded.
	LastConnected time.Time `yaml:"last_connected,omitempty"`
}

// AddressBook is the set of remembered robots.
type AddressBook struct {
	// Version is the book format version.
	Version int `yaml:"version"`

	// SavedAt is when the book was last written.
	SavedAt time.Time `yaml:"saved_at,omitempty"`

	// Robots are the entries, kept sorted by name.
	Robots []Robot `yaml:"robots,omitempty"`
}

// Find returns the entry with the given name. Matching is
// case-insensitive.
func (b *AddressBook) Find(name string) (Robot, bool) {
	for _, r := range b.Robots {
		if strings.EqualFold(r.Name, name) {
			return r, true
		}
	}
	return Robot{}, false
}

// Remember inserts or replaces the entry with the robot's name. On
// replace, a zero LastConnected keeps the previous timestamp.
func (b *AddressBook) Remember(robot Robot) {
	for i, r := range b.Robots {
		if strings.EqualFold(r.Name, robot.Name) {
			if robot.LastConnected.IsZero() {
				robot.LastConnected = r.LastConnected
			}
			b.Robots[i] = robot
			return
		}
	}
	b.Robots = append(b.Robots, robot)
	sort.Slice(b.Robots, func(i, j int) bool {
		return strings.ToLower(b.Robots[i].Name) < strings.ToLower(b.Robots[j].Name)
	})
}

// Forget removes the entry with the given name and reports whether it
// existed.
func (b *AddressBook) Forget(name string) bool {
	for i, r := range b.Robots {
		if strings.EqualFold(r.Name, name) {
			b.Robots = append(b.Robots[:i], b.Robots[i+1:]...)
			return true
		}
	}
	return false
}

// Touch stamps the entry's LastConnected and reports whether it existed.
func (b *AddressBook) Touch(name string, at time.Time) bool {
	for i, r := range b.Robots {
		if strings.EqualFold(r.Name, name) {
			b.Robots[i].LastConnected = at
			return true
		}
	}
	return false
}

// DefaultPath returns the standard address book location,
// ~/.sphero-go/robots.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".sphero-go", "robots.yaml"), nil
}

// Store reads and writes an address book file.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the address book. A missing file yields an empty book.
func (s *Store) Load() (*AddressBook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &AddressBook{Version: BookVersion}, nil
	}
	if err != nil {
		return nil, err
	}

	book := &AddressBook{}
	if err := yaml.Unmarshal(data, book); err != nil {
		return nil, err
	}
	return book, nil
}

// Save writes the address book, creating the parent directory if
// needed.
func (s *Store) Save(book *AddressBook) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}

	book.Version = BookVersion
	book.SavedAt = time.Now()

	data, err := yaml.Marshal(book)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0644)
}

// Clear removes the address book file.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
