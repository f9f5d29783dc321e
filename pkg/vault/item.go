package vault

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/vaultcore/pkg/secrets"
)

// Category classifies what kind of secret an item holds.
type Category string

const (
	CategorySeed       Category = "seed"
	CategoryWallet     Category = "wallet"
	CategoryPrivateKey Category = "private_key"
)

func (c Category) valid() bool {
	switch c {
	case CategorySeed, CategoryWallet, CategoryPrivateKey:
		return true
	default:
		return false
	}
}

// Item is a stored vault record. Value is the encrypted payload; the
// plaintext never appears in this struct.
type Item struct {
	ID        uuid.UUID        `json:"id"`
	Title     string           `json:"title"`
	Category  Category         `json:"category"`
	CreatedAt time.Time        `json:"created_at"`
	Value     secrets.Envelope `json:"value"`
}

// Info is the listing view of an item: metadata without the ciphertext.
type Info struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Category  Category  `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}

func (i Item) info() Info {
	return Info{
		ID:        i.ID,
		Title:     i.Title,
		Category:  i.Category,
		CreatedAt: i.CreatedAt,
	}
}
