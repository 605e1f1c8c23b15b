package savegame

import (
	"context"
	"errors"
	"time"
)

const (
	CodeOK   = 0
	CodeFail = -1

	MsgOK          = "ok"
	MsgNoSaveFound = "no save found"
)

var (
	ErrNoIdentity  = errors.New("no identity")
	ErrInvalidData = errors.New("invalid data")
	// ErrDuplicateRecord is returned by Store.Insert when the owner already has a record.
	ErrDuplicateRecord = errors.New("save record already exists")
)

// SaveRecord is the single persisted save document of one owner.
type SaveRecord struct {
	Owner     string         `json:"owner"`
	SaveData  map[string]any `json:"saveData"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// LoadResponse is the envelope returned by LoadSave.
type LoadResponse struct {
	Code      int            `json:"code"`
	SaveData  map[string]any `json:"saveData"`
	UpdatedAt *time.Time     `json:"updatedAt,omitempty"`
	Msg       string         `json:"msg,omitempty"`
}

// SaveResponse is the envelope returned by SaveSave.
type SaveResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Store is the minimal document store the service needs: filter by owner,
// insert and update by owner.
type Store interface {
	// FindByOwner returns every record whose owner equals owner. An empty
	// result is not an error.
	FindByOwner(ctx context.Context, owner string) ([]SaveRecord, error)
	// Insert adds a new record. Implementations that enforce owner uniqueness
	// return ErrDuplicateRecord on conflict.
	Insert(ctx context.Context, rec SaveRecord) error
	// UpdateByOwner replaces saveData and updatedAt of the owner's record.
	UpdateByOwner(ctx context.Context, owner string, data map[string]any, updatedAt time.Time) error
}

// Upserter is implemented by stores that can insert-or-update in a single
// operation keyed by the owner uniqueness constraint.
type Upserter interface {
	Upsert(ctx context.Context, owner string, data map[string]any, now time.Time) error
}

// Counter reports the number of stored records.
type Counter interface {
	Count(ctx context.Context) (int64, error)
}

// Migrator creates the indexes or tables a store relies on.
type Migrator interface {
	Migrate(ctx context.Context) error
}

// Closer releases the resources held by a store.
type Closer interface {
	Close(ctx context.Context) error
}

// AsObject reports whether v is a JSON object and returns it as a map.
func AsObject(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	if !ok || m == nil {
		return nil, false
	}
	return m, true
}
