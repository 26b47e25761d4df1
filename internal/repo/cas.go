package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Order selects the Seq direction of a list query.
type Order string

const (
	OldestFirst Order = "seq ASC"
	NewestFirst Order = "seq DESC"
)

func (o Order) clause(table string) string {
	if o == NewestFirst {
		return table + ".seq DESC"
	}
	return table + ".seq ASC"
}

// compareAndSet moves the row id of model from status `from` to status `to`
// with a single conditional UPDATE. extra columns are written in the same
// statement. It reports whether the row was changed; false means the row is
// missing or was not in `from`.
func compareAndSet(ctx context.Context, db *gorm.DB, model any, id, from, to string, extra map[string]any) (bool, error) {
	cols := make(map[string]any, len(extra)+2)
	for k, v := range extra {
		cols[k] = v
	}
	cols["status"] = to
	cols["updated_at"] = time.Now().UTC()

	res := db.WithContext(ctx).
		Model(model).
		Where("id = ? AND status = ?", id, from).
		Updates(cols)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
