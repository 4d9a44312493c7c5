package testutil

import (
	"context"
	"fmt"
	"testing"

	devenv "cptracker-backend/dev/env"
	"cptracker-backend/lib/entitystore"
	"cptracker-backend/lib/model"
	"cptracker-backend/lib/telemetry"
)

type StoreParams struct {
	Name string
	// if unspecified, it will use `:memory:`
	DbPath string
	// if unspecified, it will use entitystore.DefaultErrorLogLimit
	ErrorLogLimit int
	// created before the store is returned
	Entities []model.Entity
}

// SetupStore opens a migrated sqlite entity store with telemetry set up
// for the test, call the returned func when done.
func SetupStore(t testing.TB, params StoreParams) (*entitystore.SqliteStore, func()) {
	telemetryCleanup := telemetry.SetupForTesting(t, fmt.Sprintf("test:%s", params.Name))

	dbpath := ":memory:"
	if params.DbPath != "" && params.DbPath != ":memory:" {
		var err error
		dbpath, err = devenv.ResolvePath(params.DbPath)
		if err != nil {
			t.Fatal(err)
		}
	}
	limit := params.ErrorLogLimit
	if limit <= 0 {
		limit = entitystore.DefaultErrorLogLimit
	}

	store, err := entitystore.OpenSqlite(context.Background(), dbpath, limit)
	if err != nil {
		t.Fatal(err)
	}
	for _, entity := range params.Entities {
		err = store.Create(context.Background(), entity)
		if err != nil {
			t.Fatal(err)
		}
	}

	return store, func() {
		store.Close()
		telemetryCleanup()
	}
}
