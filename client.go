// Package objectkit provides typed Postgres access to a household-objects
// database: 3-D models, their scaled variants, precomputed grasps, mesh
// geometry, perturbation samples, and a shared experiment task queue with an
// atomic claim protocol for concurrent workers.
package objectkit

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/manipulab/objectkit/model"
	"github.com/manipulab/objectkit/query"
	"github.com/manipulab/objectkit/search"
	"github.com/manipulab/objectkit/shape"
	"github.com/manipulab/objectkit/tasks"
)

type ClientConfig struct {
	Pool   *pgxpool.Pool
	Schema string
}

type Client struct {
	pool   *pgxpool.Pool
	schema string

	taskRepo *tasks.Repo
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Pool == nil {
		return nil, fmt.Errorf("Pool is required")
	}
	schema := strings.TrimSpace(cfg.Schema)
	if schema == "" {
		return nil, fmt.Errorf("Schema is required")
	}
	return &Client{
		pool:     cfg.Pool,
		schema:   schema,
		taskRepo: tasks.NewRepo(cfg.Pool, schema),
	}, nil
}

// Tasks exposes the experiment task repo for enqueueing and worker-side
// status reporting.
func (c *Client) Tasks() *tasks.Repo { return c.taskRepo }

// AcquireNextTask atomically claims the next PENDING experiment for
// workerID. It returns (nil, nil) when no experiment is pending.
func (c *Client) AcquireNextTask(ctx context.Context, workerID string) (*tasks.Task, error) {
	return c.taskRepo.AcquireNext(ctx, workerID)
}

// OriginalModels lists every original model.
func (c *Client) OriginalModels(ctx context.Context) ([]*model.OriginalModel, error) {
	return query.List[model.OriginalModel](ctx, c.pool, c.schema, &model.OriginalModel{}, query.All())
}

// CountOriginalModels returns the number of original models.
func (c *Client) CountOriginalModels(ctx context.Context) (int64, error) {
	return query.Count[model.OriginalModel](ctx, c.pool, c.schema, &model.OriginalModel{}, query.All())
}

// ModelsByTags lists the original models carrying every one of tags. No
// tags means no filter.
func (c *Client) ModelsByTags(ctx context.Context, tags []string) ([]*model.OriginalModel, error) {
	conds := make([]query.Cond, 0, len(tags))
	for _, tag := range tags {
		conds = append(conds, query.HasElem("original_model_tags", tag))
	}
	return query.List[model.OriginalModel](ctx, c.pool, c.schema, &model.OriginalModel{}, query.And(conds...))
}

// ScaledModels lists every scaled model.
func (c *Client) ScaledModels(ctx context.Context) ([]*model.ScaledModel, error) {
	return query.List[model.ScaledModel](ctx, c.pool, c.schema, &model.ScaledModel{}, query.All())
}

// ScaledModelsByAcquisition lists the scaled models whose original was
// acquired by the given method.
func (c *Client) ScaledModelsByAcquisition(ctx context.Context, acquisitionMethod string) ([]*model.ScaledModel, error) {
	return query.List[model.ScaledModel](ctx, c.pool, c.schema, &model.ScaledModel{},
		query.And(query.Eq("acquisition_method_name", acquisitionMethod)))
}

// ScaledModelsBySet lists the scaled models whose original belongs to the
// named model set. An empty set name means every scaled model.
func (c *Client) ScaledModelsBySet(ctx context.Context, modelSetName string) ([]*model.ScaledModel, error) {
	if modelSetName == "" {
		return c.ScaledModels(ctx)
	}
	frag := fmt.Sprintf(
		"original_model_id IN (SELECT original_model_id FROM %s.model_set WHERE model_set_name = @model_set)",
		c.schema)
	return query.List[model.ScaledModel](ctx, c.pool, c.schema, &model.ScaledModel{},
		query.Fragment(frag, map[string]any{"model_set": modelSetName}))
}

// Grasps lists all grasps for a scaled model and hand.
func (c *Client) Grasps(ctx context.Context, scaledModelID int64, handName string) ([]*model.Grasp, error) {
	return query.List[model.Grasp](ctx, c.pool, c.schema, &model.Grasp{}, query.And(
		query.Eq("scaled_model_id", scaledModelID),
		query.Eq("hand_name", handName),
	))
}

// ClusterRepGrasps lists only the cluster-representative grasps for a scaled
// model and hand.
func (c *Client) ClusterRepGrasps(ctx context.Context, scaledModelID int64, handName string) ([]*model.Grasp, error) {
	return query.List[model.Grasp](ctx, c.pool, c.schema, &model.Grasp{}, query.And(
		query.Eq("scaled_model_id", scaledModelID),
		query.Eq("hand_name", handName),
		query.Eq("grasp_cluster_rep", true),
	))
}

// ScaledModelMesh loads the mesh for a scaled model, resolving through its
// original model id. Meshes are stored per original model; scale is applied
// by the caller.
func (c *Client) ScaledModelMesh(ctx context.Context, scaledModelID int64) (*model.Mesh, error) {
	sm := &model.ScaledModel{ID: scaledModelID}
	if err := query.Load[model.ScaledModel](ctx, c.pool, c.schema, sm); err != nil {
		return nil, fmt.Errorf("resolve original model for scaled model %d: %w", scaledModelID, err)
	}
	m := &model.Mesh{OriginalModelID: sm.OriginalModelID}
	if err := query.Load[model.Mesh](ctx, c.pool, c.schema, m); err != nil {
		return nil, fmt.Errorf("load mesh for scaled model %d (original model %d): %w",
			scaledModelID, sm.OriginalModelID, err)
	}
	return m, nil
}

// ScaledModelShape loads a scaled model's mesh as a triangle-mesh shape.
func (c *Client) ScaledModelShape(ctx context.Context, scaledModelID int64) (*shape.Shape, error) {
	m, err := c.ScaledModelMesh(ctx, scaledModelID)
	if err != nil {
		return nil, err
	}
	return shape.FromMesh(m)
}

// PerturbationsForModel lists the perturbations of every grasp of a scaled
// model.
func (c *Client) PerturbationsForModel(ctx context.Context, scaledModelID int64) ([]*model.Perturbation, error) {
	frag := fmt.Sprintf(
		"grasp_id IN (SELECT grasp_id FROM %s.grasp WHERE scaled_model_id = @scaled_model)",
		c.schema)
	return query.List[model.Perturbation](ctx, c.pool, c.schema, &model.Perturbation{},
		query.Fragment(frag, map[string]any{"scaled_model": scaledModelID}))
}

// PerturbationsForGrasps lists the perturbations of the given grasps.
func (c *Client) PerturbationsForGrasps(ctx context.Context, graspIDs []int64) ([]*model.Perturbation, error) {
	return query.List[model.Perturbation](ctx, c.pool, c.schema, &model.Perturbation{},
		query.And(query.In("grasp_id", graspIDs)))
}

// Variable reads one row of the key/value configuration table.
func (c *Client) Variable(ctx context.Context, name string) (string, error) {
	v := &model.Variable{Name: name}
	if err := query.Load[model.Variable](ctx, c.pool, c.schema, v); err != nil {
		return "", err
	}
	return v.Value, nil
}

// ModelRoot returns the filesystem root that stored geometry paths are
// relative to.
func (c *Client) ModelRoot(ctx context.Context) (string, error) {
	return c.Variable(ctx, "MODEL_ROOT")
}

// SimilarModels returns the scaled models whose shape descriptor is closest
// to descriptor, nearest first.
func (c *Client) SimilarModels(ctx context.Context, descriptor []float32, limit int) ([]search.Hit, error) {
	if limit <= 0 {
		limit = 10
	}
	return search.SimilarModels(ctx, c.pool, descriptor, search.Options{
		Schema: c.schema,
		Limit:  limit,
	})
}
