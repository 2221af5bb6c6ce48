package factory

import (
	"errors"

	"github.com/mpapenbr/docflow-session-go/pkg/storage"
)

type StorageType string

var (
	ErrStorageTypeNotSupported = errors.New("storage type not supported")
	ErrStorageWrongCreator     = errors.New("storage wrong creator")
)

//nolint:lll //readability
type Creator[S storage.Storage, ImplOpt any] func([]storage.Option, []ImplOpt) (S, error)

var registry = map[StorageType]any{}

// Register a new implementation generically
//
//nolint:whitespace //editor/linter issue
func Register[S storage.Storage, ImplOpt any](
	key StorageType, creator Creator[S, ImplOpt],
) {
	registry[key] = creator
}

// New creates a storage of the registered type. The type parameters must
// match the ones used on registration.
//
//nolint:whitespace //editor/linter issue
func New[S storage.Storage, ImplOpt any](
	key StorageType,
	common []storage.Option,
	specific []ImplOpt,
) (S, error) {
	entry, ok := registry[key]
	if !ok {
		var zero S
		return zero, ErrStorageTypeNotSupported
	}
	creator, ok := entry.(Creator[S, ImplOpt])
	if !ok {
		var zero S
		return zero, ErrStorageWrongCreator
	}
	return creator(common, specific)
}

func Registered() []StorageType {
	ret := make([]StorageType, 0, len(registry))
	for k := range registry {
		ret = append(ret, k)
	}
	return ret
}
