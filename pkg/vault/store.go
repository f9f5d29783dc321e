package vault

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/vaultcore/pkg/kdf"
	"github.com/dmitrymomot/vaultcore/pkg/logger"
	"github.com/dmitrymomot/vaultcore/pkg/secrets"
	"github.com/dmitrymomot/vaultcore/pkg/storage"
)

// Store persists encrypted vault items through the key-value port.
type Store struct {
	storage storage.Store
	logger  *slog.Logger
	now     func() time.Time
	encOpts []secrets.Option
}

// StoreOption configures a Store at construction time.
type StoreOption func(*Store)

// WithLogger sets the logger; defaults to discard.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock injects the time source for item timestamps. Test hook.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithEncryptOptions forwards options to the underlying secrets calls.
func WithEncryptOptions(opts ...secrets.Option) StoreOption {
	return func(s *Store) { s.encOpts = append(s.encOpts, opts...) }
}

// NewStore creates a vault item store backed by st.
func NewStore(st storage.Store, opts ...StoreOption) *Store {
	s := &Store{
		storage: st,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add encrypts plaintext immediately and persists the new item. The caller's
// plaintext buffer is zeroed before Add returns, success or not.
func (s *Store) Add(ctx context.Context, title string, category Category, plaintext []byte, masterPassword string) (Info, error) {
	defer kdf.ClearBytes(plaintext)

	if title == "" {
		return Info{}, ErrEmptyTitle
	}
	if !category.valid() {
		return Info{}, ErrInvalidCategory
	}

	env, err := secrets.Encrypt(plaintext, masterPassword, s.encOpts...)
	if err != nil {
		return Info{}, err
	}

	items, err := s.loadIndex(ctx)
	if err != nil {
		return Info{}, err
	}

	item := Item{
		ID:        uuid.New(),
		Title:     title,
		Category:  category,
		CreatedAt: s.now().UTC(),
		Value:     env,
	}
	items = append(items, item)

	if err := s.saveIndex(ctx, items); err != nil {
		return Info{}, err
	}

	s.logger.InfoContext(ctx, "vault item added",
		logger.Component("vault"),
		logger.ItemID(item.ID.String()),
		slog.String("category", string(category)),
	)

	return item.info(), nil
}

// List returns item metadata only; ciphertexts stay in storage.
func (s *Store) List(ctx context.Context) ([]Info, error) {
	items, err := s.loadIndex(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]Info, 0, len(items))
	for _, item := range items {
		infos = append(infos, item.info())
	}
	return infos, nil
}

// Reveal decrypts one item's value transiently. The caller must clear the
// returned bytes once the display completes.
func (s *Store) Reveal(ctx context.Context, id uuid.UUID, masterPassword string) ([]byte, error) {
	items, err := s.loadIndex(ctx)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		if item.ID == id {
			return secrets.Decrypt(item.Value, masterPassword, s.encOpts...)
		}
	}
	return nil, ErrItemNotFound
}

// Delete removes an item permanently.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	items, err := s.loadIndex(ctx)
	if err != nil {
		return err
	}

	kept := items[:0]
	found := false
	for _, item := range items {
		if item.ID == id {
			found = true
			continue
		}
		kept = append(kept, item)
	}
	if !found {
		return ErrItemNotFound
	}

	if err := s.saveIndex(ctx, kept); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "vault item deleted",
		logger.Component("vault"),
		logger.ItemID(id.String()),
	)
	return nil
}

func (s *Store) loadIndex(ctx context.Context) ([]Item, error) {
	raw, err := s.storage.Get(ctx, storage.KeyVaultItems)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Join(storage.ErrStorageFailure, err)
	}

	var items []Item
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, errors.Join(ErrIndexCorrupted, err)
	}
	return items, nil
}

func (s *Store) saveIndex(ctx context.Context, items []Item) error {
	data, err := json.Marshal(items)
	if err != nil {
		return errors.Join(ErrIndexCorrupted, err)
	}
	if err := s.storage.Set(ctx, storage.KeyVaultItems, string(data)); err != nil {
		return errors.Join(storage.ErrStorageFailure, err)
	}
	return nil
}
