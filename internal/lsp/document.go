package lsp

import (
	"sync"
	"time"
)

// Document is a snapshot of an open text document.
type Document struct {
	URI        DocumentURI
	LanguageID string
	Version    int
	Text       string

	OpenedAt   time.Time
	ModifiedAt time.Time
}

// DocumentStore tracks the text of open documents. Methods return copies,
// so a snapshot stays valid while the store moves on.
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[DocumentURI]*Document
}

// NewDocumentStore creates an empty store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[DocumentURI]*Document)}
}

// Open records a newly opened document, replacing any previous state.
func (s *DocumentStore) Open(item TextDocumentItem) Document {
	now := time.Now()
	doc := &Document{
		URI:        item.URI,
		LanguageID: item.LanguageID,
		Version:    item.Version,
		Text:       item.Text,
		OpenedAt:   now,
		ModifiedAt: now,
	}

	s.mu.Lock()
	s.docs[item.URI] = doc
	s.mu.Unlock()
	return *doc
}

// Change applies content changes in order and returns the new snapshot.
func (s *DocumentStore) Change(id VersionedTextDocumentIdentifier, changes []TextDocumentContentChangeEvent) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id.URI]
	if !ok {
		return Document{}, ErrDocumentNotOpen
	}
	for _, change := range changes {
		doc.Text = applyChange(doc.Text, change)
	}
	doc.Version = id.Version
	doc.ModifiedAt = time.Now()
	return *doc, nil
}

// Close forgets a document.
func (s *DocumentStore) Close(uri DocumentURI) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[uri]; !ok {
		return ErrDocumentNotOpen
	}
	delete(s.docs, uri)
	return nil
}

// Get returns the current snapshot of a document.
func (s *DocumentStore) Get(uri DocumentURI) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[uri]
	if !ok {
		return Document{}, false
	}
	return *doc, true
}

// Len returns the number of open documents.
func (s *DocumentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
