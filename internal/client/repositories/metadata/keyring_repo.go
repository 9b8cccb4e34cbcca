package metadata

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/zalando/go-keyring"
)

// indexKey lists the keys stored by a KeyringRepository, since the OS
// keyring cannot enumerate the entries of a service.
const indexKey = "__index"

// KeyringRepository keeps values in the OS keyring. Entries are named
// "<namespace>/<key>" under the given service; values are base64 encoded.
type KeyringRepository struct {
	service   string
	namespace string

	mu sync.Mutex
}

var _ Repository = (*KeyringRepository)(nil)

func NewKeyringRepository(service, namespace string) *KeyringRepository {
	return &KeyringRepository{service: service, namespace: namespace}
}

func (r *KeyringRepository) entry(key string) string {
	return r.namespace + "/" + key
}

func (r *KeyringRepository) Get(_ context.Context, key string) ([]byte, error) {
	raw, err := keyring.Get(r.service, r.entry(key))
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata[%s/%s]: %w", r.namespace, key, err)
	}

	value, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode metadata[%s/%s]: %w", r.namespace, key, err)
	}
	return value, nil
}

func (r *KeyringRepository) Set(_ context.Context, key string, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := keyring.Set(r.service, r.entry(key), base64.StdEncoding.EncodeToString(value)); err != nil {
		return fmt.Errorf("failed to set metadata[%s/%s]: %w", r.namespace, key, err)
	}
	return r.updateIndex(func(keys map[string]struct{}) { keys[key] = struct{}{} })
}

func (r *KeyringRepository) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.delete(key); err != nil {
		return err
	}
	return r.updateIndex(func(keys map[string]struct{}) { delete(keys, key) })
}

func (r *KeyringRepository) List(ctx context.Context) (map[string][]byte, error) {
	r.mu.Lock()
	keys, err := r.readIndex()
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	result := make(map[string][]byte, len(keys))
	for _, key := range keys {
		value, err := r.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if value != nil {
			result[key] = value
		}
	}
	return result, nil
}

func (r *KeyringRepository) Clear(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys, err := r.readIndex()
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := r.delete(key); err != nil {
			return err
		}
	}
	if err := keyring.Delete(r.service, r.entry(indexKey)); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to clear metadata[%s]: %w", r.namespace, err)
	}
	return nil
}

func (r *KeyringRepository) delete(key string) error {
	err := keyring.Delete(r.service, r.entry(key))
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete metadata[%s/%s]: %w", r.namespace, key, err)
	}
	return nil
}

func (r *KeyringRepository) readIndex() ([]string, error) {
	raw, err := keyring.Get(r.service, r.entry(indexKey))
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata index[%s]: %w", r.namespace, err)
	}

	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, fmt.Errorf("failed to decode metadata index[%s]: %w", r.namespace, err)
	}
	return keys, nil
}

// updateIndex must be called with r.mu held.
func (r *KeyringRepository) updateIndex(fn func(map[string]struct{})) error {
	keys, err := r.readIndex()
	if err != nil {
		return err
	}

	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	fn(set)

	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)

	raw, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to encode metadata index[%s]: %w", r.namespace, err)
	}
	if err := keyring.Set(r.service, r.entry(indexKey), string(raw)); err != nil {
		return fmt.Errorf("failed to write metadata index[%s]: %w", r.namespace, err)
	}
	return nil
}
