// Package search runs nearest-neighbour lookups over per-model shape
// descriptors.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Hit is one similar scaled model, closest first.
type Hit struct {
	ScaledModelID int64
	Distance      float32
}

type Options struct {
	Schema string
	Limit  int

	// FilterSQL is an optional additional WHERE fragment appended to the
	// query as `AND (<FilterSQL>)`, for host-owned constraints that must be
	// enforced inside the retrieval query (e.g. restricting to a model set).
	//
	// IMPORTANT: this is trusted SQL provided by the host app. Do not insert
	// user input into it unsafely; reference FilterArgs with '@name'
	// placeholders instead.
	FilterSQL  string
	FilterArgs map[string]any
}

// SimilarModels returns the scaled models whose stored shape descriptor is
// closest to descriptor by cosine distance. Models without a descriptor row
// are not candidates.
func SimilarModels(ctx context.Context, pool *pgxpool.Pool, descriptor []float32, opts Options) ([]Hit, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if strings.TrimSpace(opts.Schema) == "" {
		return nil, fmt.Errorf("schema is required")
	}
	if len(descriptor) == 0 {
		return nil, fmt.Errorf("descriptor is required")
	}
	if opts.Limit <= 0 {
		return []Hit{}, nil
	}

	where := ""
	args := pgx.NamedArgs{
		"descriptor": pgvector.NewHalfVector(descriptor),
		"limit":      opts.Limit,
	}
	if strings.TrimSpace(opts.FilterSQL) != "" {
		where = " WHERE (" + opts.FilterSQL + ")"
		for k, v := range opts.FilterArgs {
			if _, taken := args[k]; taken {
				return nil, fmt.Errorf("filter arg %q collides with a reserved argument name", k)
			}
			args[k] = v
		}
	}

	sql := fmt.Sprintf(`
		SELECT
			sd.scaled_model_id,
			(sd.descriptor <=> @descriptor::halfvec(%d))::float4 AS distance
		FROM %s.shape_descriptor sd
		%s
		ORDER BY distance ASC, sd.scaled_model_id ASC
		LIMIT @limit
	`, len(descriptor), opts.Schema, where)

	rows, err := pool.Query(ctx, sql, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.ScaledModelID, &h.Distance); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
