package sqlite

import (
	"database/sql/driver"
	"fmt"

	sqlite "modernc.org/sqlite"

	"github.com/kailas-cloud/graphvec/internal/db"
)

func registerFunctions() error {
	return sqlite.RegisterDeterministicScalarFunction(distanceFunc, 2, l2Impl)
}

func asVector(arg driver.Value) ([]float32, error) {
	switch v := arg.(type) {
	case nil:
		return nil, nil
	case []byte:
		return db.DecodeVector(v)
	default:
		return nil, fmt.Errorf("%s: unsupported argument type %T; want BLOB", distanceFunc, arg)
	}
}

func l2Impl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("%s: expected 2 arguments, got %d", distanceFunc, len(args))
	}
	a, err := asVector(args[0])
	if err != nil {
		return nil, err
	}
	b, err := asVector(args[1])
	if err != nil {
		return nil, err
	}
	if a == nil || b == nil {
		return nil, nil
	}
	return db.L2(a, b)
}
