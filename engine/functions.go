package engine

import (
	"database/sql/driver"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	sqlite "modernc.org/sqlite"
)

var registerOnce sync.Once

// RegisterFunctions registers xxhash64 with the driver so it is available on
// new connections opened after this call.
// Note: existing open connections will not see new functions.
func RegisterFunctions() error {
	var err error
	registerOnce.Do(func() {
		err = sqlite.RegisterDeterministicScalarFunction("xxhash64", 1, xxhash64Impl)
	})
	return err
}

// xxhash64Impl implements xxhash64(x) -> INTEGER. The unsigned digest is
// reinterpreted as a signed 64-bit value since SQLite has no unsigned type.
func xxhash64Impl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("xxhash64: expected 1 argument, got %d", len(args))
	}
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return int64(xxhash.Sum64String(v)), nil
	case []byte:
		return int64(xxhash.Sum64(v)), nil
	case int64, float64:
		return int64(xxhash.Sum64String(fmt.Sprint(v))), nil
	default:
		return nil, fmt.Errorf("xxhash64: unsupported argument type %T", v)
	}
}
