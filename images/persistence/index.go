package persistence

import (
	"fmt"
	"regexp"
	"slices"
	"sync"

	"github.com/lxl66566/img-server/images/domain"
)

var hexHashRegex = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// Index is the in-memory metadata index: the loaded config aggregate
// guarded by a reader/writer lock, the only lock domain in the process.
// Writers mutate in memory and synchronously persist the whole snapshot;
// the lock is never held across image object I/O. A persist failure leaves
// the in-memory state already mutated and surfaces to the caller.
type Index struct {
	mu   sync.RWMutex
	cfg  *Config
	path string
}

func NewIndex(cfg *Config, path string) *Index {
	return &Index{cfg: cfg, path: path}
}

// IsBlacklisted reports whether addr is on the blacklist.
func (i *Index) IsBlacklisted(addr string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return slices.Contains(i.cfg.Blacklist, addr)
}

// IsValidToken reports whether token is in the admin token set.
func (i *Index) IsValidToken(token string) bool {
	if token == "" {
		return false
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	return slices.Contains(i.cfg.Tokens, token)
}

// ThumbnailPixels returns the configured thumbnail pixel budget; zero
// disables derivation.
func (i *Index) ThumbnailPixels() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.cfg.ThumbnailPixels
}

// Resolve maps an identifier to a content hash: the first record whose name
// matches, in insertion order, wins; otherwise the identifier itself is
// accepted when it is a full-width hex digest.
func (i *Index) Resolve(id string) (string, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	for _, rec := range i.cfg.Images {
		if rec.Name == id {
			return rec.Hash, true
		}
	}
	if hexHashRegex.MatchString(id) {
		return id, true
	}
	return "", false
}

// ListResult is one page of records, newest first.
type ListResult struct {
	Total    int                  `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
	Data     []domain.ImageRecord `json:"data"`
}

// Page returns records in reverse insertion order. page is clamped to at
// least 1 and pageSize to [1, 100].
func (i *Index) Page(page, pageSize int) ListResult {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > 100 {
		pageSize = 100
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	total := len(i.cfg.Images)
	skip := (page - 1) * pageSize
	data := make([]domain.ImageRecord, 0, pageSize)
	for n := total - 1 - skip; n >= 0 && len(data) < pageSize; n-- {
		data = append(data, i.cfg.Images[n])
	}
	return ListResult{Total: total, Page: page, PageSize: pageSize, Data: data}
}

// Append adds a record and synchronously persists the snapshot.
func (i *Index) Append(rec domain.ImageRecord) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.cfg.Images = append(i.cfg.Images, rec)
	if err := StoreConfig(i.path, i.cfg); err != nil {
		return fmt.Errorf("failed to persist index: %w", err)
	}
	return nil
}

// Remove deletes the first record named name and persists the snapshot. It
// also reports whether any remaining record still references the removed
// record's hash, so the caller can decide on object cleanup. The reference
// scan is O(N) over the record list.
func (i *Index) Remove(name string) (domain.ImageRecord, bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	at := slices.IndexFunc(i.cfg.Images, func(r domain.ImageRecord) bool { return r.Name == name })
	if at < 0 {
		return domain.ImageRecord{}, false, domain.ErrNotFound
	}
	rec := i.cfg.Images[at]
	i.cfg.Images = slices.Delete(i.cfg.Images, at, at+1)
	referenced := slices.ContainsFunc(i.cfg.Images, func(r domain.ImageRecord) bool { return r.Hash == rec.Hash })

	if err := StoreConfig(i.path, i.cfg); err != nil {
		return rec, referenced, fmt.Errorf("failed to persist index: %w", err)
	}
	return rec, referenced, nil
}

// AddToken appends a token to the admin set and persists the snapshot.
func (i *Index) AddToken(token string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !slices.Contains(i.cfg.Tokens, token) {
		i.cfg.Tokens = append(i.cfg.Tokens, token)
	}
	if err := StoreConfig(i.path, i.cfg); err != nil {
		return fmt.Errorf("failed to persist index: %w", err)
	}
	return nil
}
