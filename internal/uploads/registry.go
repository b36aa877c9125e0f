// Package uploads keeps the in-memory table of registered source
// files. Entries live for the process lifetime; the files themselves
// are owned by the workspace.
package uploads

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"montaj/internal/models"
)

type Registry struct {
	mu    sync.Mutex
	byID  map[uuid.UUID]*models.Upload
	order []uuid.UUID
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[uuid.UUID]*models.Upload)}
}

func (r *Registry) Add(u models.Upload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[u.ID]; !ok {
		r.order = append(r.order, u.ID)
	}
	r.byID[u.ID] = &u
}

func (r *Registry) Get(id uuid.UUID) (models.Upload, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return models.Upload{}, false
	}
	return *u, true
}

// Resolve returns the upload only when it exists and matches the
// expected kind, so a subtitle id cannot be passed where a video id
// belongs.
func (r *Registry) Resolve(id uuid.UUID, kind models.UploadKind) (models.Upload, error) {
	u, ok := r.Get(id)
	if !ok {
		return models.Upload{}, fmt.Errorf("upload %s not found", id)
	}
	if u.Kind != kind {
		return models.Upload{}, fmt.Errorf("upload %s is %s, expected %s", id, u.Kind, kind)
	}
	return u, nil
}

// List returns all uploads, newest first.
func (r *Registry) List() []models.Upload {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Upload, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		out = append(out, *r.byID[r.order[i]])
	}
	return out
}
