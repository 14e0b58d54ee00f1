package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// DefaultCopyBatch bounds the rows sent in one COPY.
const DefaultCopyBatch = 5000

// CopyRows appends rows to table with the COPY protocol, batchSize rows per
// COPY. A batchSize <= 0 uses DefaultCopyBatch. It returns the number of rows
// written before the first failure.
func CopyRows(ctx context.Context, pool Pool, table string, columns []string, rows [][]any, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = DefaultCopyBatch
	}

	var total int64
	for start := 0; start < len(rows); start += batchSize {
		end := min(start+batchSize, len(rows))
		for i, r := range rows[start:end] {
			if len(r) != len(columns) {
				return total, eris.Errorf("db: copy %s: row %d has %d values for %d columns", table, start+i, len(r), len(columns))
			}
		}
		n, err := pool.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows[start:end]))
		total += n
		if err != nil {
			return total, eris.Wrapf(err, "db: copy %s rows %d-%d", table, start, end)
		}
	}
	return total, nil
}
