package datasource

import (
	"context"
	"fmt"

	"github.com/vanderheijden86/opsboard/pkg/model"
)

// LoadFile opens the data file at path, loads every record and closes it.
// Records without a tenant are stamped with tenant.
func LoadFile(ctx context.Context, path, tenant string) ([]model.Record, error) {
	store, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	records, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	for i := range records {
		if records[i].Tenant == "" {
			records[i].Tenant = tenant
		}
	}
	return records, nil
}
