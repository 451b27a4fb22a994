package state

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
)

var ErrETagMismatch = errors.New("state: etag mismatch")

// Ref identifies one persisted snapshot within a domain.
type Ref struct {
	Domain string
	Key    string
}

// Meta is storage-owned metadata used for audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads, saves and deletes one snapshot per Ref.
type Store[T any] interface {
	Load(ctx context.Context, ref Ref) (snapshot T, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error)
	Delete(ctx context.Context, ref Ref) error
}

type Mutator[T any] func(*T) error

// Identifier returns the canonical storage key "<domain>/<key>".
func (r Ref) Identifier() (string, error) {
	if strings.TrimSpace(r.Domain) == "" {
		return "", fmt.Errorf("state: domain is required")
	}
	if strings.TrimSpace(r.Key) == "" {
		return "", fmt.Errorf("state: key is required for domain %q", r.Domain)
	}
	if strings.Contains(r.Domain, "/") {
		return "", fmt.Errorf("state: domain %q must not contain '/'", r.Domain)
	}
	return r.Domain + "/" + r.Key, nil
}

// LoadOrDefault returns the stored snapshot or defaults when none exists.
func LoadOrDefault[T any](ctx context.Context, store Store[T], ref Ref, defaults T) (T, Meta, error) {
	if store == nil {
		return defaults, Meta{}, fmt.Errorf("state: store is required")
	}
	snapshot, meta, ok, err := store.Load(ctx, ref)
	if err != nil {
		return defaults, Meta{}, fmt.Errorf("state: load %q/%q: %w", ref.Domain, ref.Key, err)
	}
	if !ok {
		return defaults, Meta{}, nil
	}
	return snapshot, meta, nil
}

// Mutate loads one snapshot, applies fn, validates the result, then saves.
// A non-empty meta.ETag must match the stored ETag.
func Mutate[T any](ctx context.Context, store Store[T], ref Ref, meta Meta, fn Mutator[T]) (T, Meta, error) {
	var zero T
	if store == nil {
		return zero, Meta{}, fmt.Errorf("state: store is required")
	}
	if ref.Domain == "" {
		return zero, Meta{}, fmt.Errorf("state: domain is required")
	}
	if ref.Key == "" {
		return zero, Meta{}, fmt.Errorf("state: key is required")
	}
	if fn == nil {
		return zero, Meta{}, fmt.Errorf("state: mutator is required")
	}

	snapshot, loadedMeta, ok, err := store.Load(ctx, ref)
	if err != nil {
		return zero, Meta{}, fmt.Errorf("state: load %q/%q: %w", ref.Domain, ref.Key, err)
	}
	if !ok {
		snapshot = zero
		loadedMeta = Meta{}
	}

	if meta.ETag != "" && loadedMeta.ETag != "" && meta.ETag != loadedMeta.ETag {
		return zero, loadedMeta, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, loadedMeta.ETag)
	}

	if err := fn(&snapshot); err != nil {
		return zero, loadedMeta, err
	}

	if err := validateValue(snapshot); err != nil {
		return zero, loadedMeta, err
	}

	savedMeta, err := store.Save(ctx, ref, snapshot, mergeMeta(loadedMeta, meta))
	if err != nil {
		return zero, loadedMeta, fmt.Errorf("state: save %q/%q: %w", ref.Domain, ref.Key, err)
	}
	return snapshot, savedMeta, nil
}

func validateValue[T any](value T) error {
	if v, ok := any(value).(interface{ Validate() error }); ok {
		return v.Validate()
	}
	if rv := reflect.ValueOf(&value).Elem(); rv.CanAddr() {
		if v, ok := rv.Addr().Interface().(interface{ Validate() error }); ok {
			return v.Validate()
		}
	}
	return nil
}

func mergeMeta(base, override Meta) Meta {
	out := base
	if override.SnapshotID != "" {
		out.SnapshotID = override.SnapshotID
	}
	if override.ETag != "" {
		out.ETag = override.ETag
	}
	if !override.UpdatedAt.IsZero() {
		out.UpdatedAt = override.UpdatedAt
	}
	if override.Extra != nil {
		out.Extra = override.Extra
	}
	return out
}

// CloneMeta deep-copies meta so stores never share the Extra map.
func CloneMeta(meta Meta) Meta {
	out := meta
	if meta.Extra == nil {
		return out
	}
	out.Extra = make(map[string]string, len(meta.Extra))
	for k, v := range meta.Extra {
		out.Extra[k] = v
	}
	return out
}

// StampMeta assigns a fresh SnapshotID and ETag and sets UpdatedAt.
func StampMeta(meta Meta, now time.Time, newID func() string) Meta {
	out := CloneMeta(meta)
	out.SnapshotID = newID()
	out.ETag = newID()
	out.UpdatedAt = now.UTC()
	return out
}
