package handlers

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/xelth-com/palletdamage/internal/models"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionFinalized = errors.New("session is already finalized")
)

type sessionDoc struct {
	fields    map[string]string
	files     map[string]string
	finalized bool
	owner     string
	updatedAt time.Time
}

// SessionStore holds session documents in memory. Every update is a
// partial merge of dotted field paths.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionDoc
}

// NewSessionStore creates an empty store
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*sessionDoc)}
}

// Patch merges fields into a session, creating it on first write
func (s *SessionStore) Patch(id, user string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.sessions[id]
	if !ok {
		doc = &sessionDoc{
			fields: make(map[string]string),
			files:  make(map[string]string),
			owner:  user,
		}
		s.sessions[id] = doc
	}
	if doc.finalized {
		return ErrSessionFinalized
	}
	for k, v := range fields {
		doc.fields[k] = v
	}
	doc.updatedAt = time.Now().UTC()
	return nil
}

// Summary counts the pallets of a session. Unknown sessions have none.
func (s *SessionStore) Summary(id string) models.SessionSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.sessions[id]
	if !ok {
		return models.SessionSummary{PalletIndices: []int{}}
	}
	idx := palletIndices(doc.fields)
	return models.SessionSummary{PalletCount: len(idx), PalletIndices: idx}
}

func palletIndices(fields map[string]string) []int {
	seen := make(map[int]bool)
	for path := range fields {
		if i, _, ok := models.ParsePalletPath(path); ok {
			seen[i] = true
		}
	}
	out := make([]int, 0, len(seen))
	for i := range seen {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Details returns a copy of a session document
func (s *SessionStore) Details(id string) (*models.SessionDetails, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	out := &models.SessionDetails{
		SessionID: id,
		Finalized: doc.finalized,
		Fields:    make(map[string]string, len(doc.fields)),
		Files:     make(map[string]string, len(doc.files)),
		UpdatedAt: doc.updatedAt,
	}
	for k, v := range doc.fields {
		out.Fields[k] = v
	}
	for k, v := range doc.files {
		out.Files[k] = v
	}
	return out, nil
}

// AttachFile records an uploaded file under a key
func (s *SessionStore) AttachFile(id, user, key, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.sessions[id]
	if !ok {
		doc = &sessionDoc{
			fields: make(map[string]string),
			files:  make(map[string]string),
			owner:  user,
		}
		s.sessions[id] = doc
	}
	if doc.finalized {
		return ErrSessionFinalized
	}
	doc.files[key] = fileID
	doc.updatedAt = time.Now().UTC()
	return nil
}

// FileID returns the file stored under a key
func (s *SessionStore) FileID(id, key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.sessions[id]
	if !ok {
		return "", false
	}
	f, ok := doc.files[key]
	return f, ok
}

// Finalize closes a session for further writes
func (s *SessionStore) Finalize(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if doc.finalized {
		return ErrSessionFinalized
	}
	doc.finalized = true
	doc.updatedAt = time.Now().UTC()
	return nil
}

// Delete removes a session
func (s *SessionStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

// Pending lists unfinished sessions of a user, newest first
func (s *SessionStore) Pending(user string) []models.PendingSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.PendingSession{}
	for id, doc := range s.sessions {
		if doc.finalized || (user != "" && doc.owner != user) {
			continue
		}
		out = append(out, models.PendingSession{
			SessionID:   id,
			ReportType:  models.ReportType(doc.fields[models.HeaderPath("report_type")]),
			Magazyner:   doc.fields[models.HeaderPath("magazyner")],
			PalletCount: len(palletIndices(doc.fields)),
			UpdatedAt:   doc.updatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}
