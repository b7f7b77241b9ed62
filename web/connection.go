// Copyright 2018 Fabian Wenzelmann
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package web

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmavko/mos"
	"github.com/nfnt/resize"
	log "github.com/sirupsen/logrus"
)

// ConnectionID identifies a client session.
type ConnectionID uuid.UUID

// GenConnectionID returns a new random id.
func GenConnectionID() (ConnectionID, error) {
	id, idErr := uuid.NewRandom()
	return ConnectionID(id), idErr
}

// ParseConnectionID parses the string representation of an id.
func ParseConnectionID(s string) (ConnectionID, error) {
	id, err := uuid.Parse(s)
	return ConnectionID(id), err
}

func (id ConnectionID) String() string {
	return uuid.UUID(id).String()
}

// State holds the settings of a session and its last mosaic.
// It is safe for concurrent use.
type State struct {
	mutex          sync.Mutex
	created        time.Time
	lastConnection time.Time
	config         mos.Config
	jpgQuality     int
	interP         resize.InterpolationFunction
	colorSpace     mos.ColorSpace
	mimeType       string
	result         *mos.Image
}

// NewState returns a state using cfg for all mosaics.
func NewState(cfg mos.Config) *State {
	now := time.Now().UTC()

	return &State{
		created:        now,
		lastConnection: now,
		config:         cfg,
		jpgQuality:     100,
		interP:         resize.Lanczos3,
		colorSpace:     mos.RGB,
		mimeType:       mos.MimeJPEG,
		result:         nil,
	}
}

// Touch marks the session as used at now.
func (s *State) Touch(now time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.lastConnection = now
}

// Expired returns true if the session wasn't used for maxAge.
func (s *State) Expired(now time.Time, maxAge time.Duration) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	age := now.Sub(s.lastConnection)
	return age >= maxAge
}

// Settings is a snapshot of the variables of a state.
type Settings struct {
	Config     mos.Config
	JPGQuality int
	InterP     resize.InterpolationFunction
	ColorSpace mos.ColorSpace
	MimeType   string
}

// Settings returns a copy of the current settings.
func (s *State) Settings() Settings {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return Settings{
		Config:     s.config,
		JPGQuality: s.jpgQuality,
		InterP:     s.interP,
		ColorSpace: s.colorSpace,
		MimeType:   s.mimeType,
	}
}

// Update calls fn with the current settings, if fn returns no error the
// modified settings are stored.
func (s *State) Update(fn func(settings *Settings) error) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	settings := Settings{
		Config:     s.config,
		JPGQuality: s.jpgQuality,
		InterP:     s.interP,
		ColorSpace: s.colorSpace,
		MimeType:   s.mimeType,
	}
	if err := fn(&settings); err != nil {
		return err
	}
	s.config = settings.Config
	s.jpgQuality = settings.JPGQuality
	s.interP = settings.InterP
	s.colorSpace = settings.ColorSpace
	s.mimeType = settings.MimeType
	return nil
}

// Result returns the last mosaic, nil if none was created yet.
func (s *State) Result() *mos.Image {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.result
}

// SetResult stores the last mosaic.
func (s *State) SetResult(img *mos.Image) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.result = img
}

var (
	ErrConnNotFound = errors.New("Connection not found")
)

// ConnectionStorage maps connection ids to states.
type ConnectionStorage interface {
	Get(conn ConnectionID) (*State, error)
	Set(conn ConnectionID, state *State) error
	Delete(conn ConnectionID) error
	Filter(maxAge time.Duration) error
}

// MemStorage is a ConnectionStorage keeping all states in memory.
type MemStorage struct {
	mutex   *sync.RWMutex
	connMap map[ConnectionID]*State
}

func NewMemStorage() *MemStorage {
	m := new(sync.RWMutex)
	connMap := make(map[ConnectionID]*State, 1000)
	return &MemStorage{
		mutex:   m,
		connMap: connMap,
	}
}

func (s *MemStorage) Get(conn ConnectionID) (*State, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	state, has := s.connMap[conn]
	if has {
		return state, nil
	}
	return nil, ErrConnNotFound
}

func (s *MemStorage) Set(conn ConnectionID, state *State) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.connMap[conn] = state
	return nil
}

func (s *MemStorage) Delete(conn ConnectionID) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.connMap, conn)
	return nil
}

// Len returns the number of stored connections.
func (s *MemStorage) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.connMap)
}

// Filter removes all states that expired.
func (s *MemStorage) Filter(maxAge time.Duration) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	now := time.Now().UTC()
	for id, state := range s.connMap {
		if state.Expired(now, maxAge) {
			delete(s.connMap, id)
		}
	}
	return nil
}

// RunFilter calls storage.Filter every interval until the returned channel
// is closed.
func RunFilter(storage ConnectionStorage, maxAge, interval time.Duration) chan<- struct{} {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := storage.Filter(maxAge); err != nil {
					log.WithError(err).Error("Can't filter expired connections")
				}
			}
		}
	}()
	return done
}
