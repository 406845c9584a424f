package ports

import "context"

// Port: opaque key -> serialized value persistence for point state.
type StateStore interface {
	// Return the stored value for key; found is false when the key was never saved.
	Load(ctx context.Context, key string) (value []byte, found bool, err error)
	Save(ctx context.Context, key string, value []byte) error
}
