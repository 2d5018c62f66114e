// Package model defines the household-object entities and their column
// bindings. Bindings mark which columns are readable, writable, and the key;
// read-only fields (like an original model's id on a scaled model's
// acquisition method) come from the database and are never written back.
package model

import "github.com/manipulab/objectkit/entity"

// OriginalModel is one source 3-D model as acquired (scan, CAD, ...).
type OriginalModel struct {
	ID                int64
	Name              string
	Maker             string
	Source            string
	Description       string
	Barcode           string
	Tags              []string
	AcquisitionMethod string
}

func (m *OriginalModel) Bind() *entity.Descriptor {
	return entity.NewDescriptor("original_model",
		entity.Col("original_model_id", &m.ID).Key(),
		entity.Col("original_model_name", &m.Name).Read().Write(),
		entity.Col("original_model_maker", &m.Maker).Read().Write(),
		entity.Col("original_model_source", &m.Source).Read().Write(),
		entity.Col("original_model_description", &m.Description).Read().Write(),
		entity.Col("original_model_barcode", &m.Barcode).Read().Write(),
		entity.Col("original_model_tags", &m.Tags).Read().Write(),
		entity.Col("acquisition_method_name", &m.AcquisitionMethod).Read().Write(),
	)
}

// ScaledModel is an original model at a given uniform scale. The acquisition
// method is denormalized from the original model and read-only here.
type ScaledModel struct {
	ID                int64
	OriginalModelID   int64
	Scale             float64
	AcquisitionMethod string
}

func (m *ScaledModel) Bind() *entity.Descriptor {
	return entity.NewDescriptor("scaled_model",
		entity.Col("scaled_model_id", &m.ID).Key(),
		entity.Col("original_model_id", &m.OriginalModelID).Read().Write(),
		entity.Col("scale", &m.Scale).Read().Write(),
		entity.Col("acquisition_method_name", &m.AcquisitionMethod).Read(),
	)
}

// Grasp is one precomputed grasp pose for a scaled model and hand. Poses are
// stored as 7-element position+quaternion arrays, joints as per-hand arrays.
type Grasp struct {
	ID             int64
	ScaledModelID  int64
	HandName       string
	PregraspJoints []float64
	GraspJoints    []float64
	PregraspPose   []float64
	GraspPose      []float64
	EpsilonQuality float64
	VolumeQuality  float64
	ClusterRep     bool
}

func (g *Grasp) Bind() *entity.Descriptor {
	return entity.NewDescriptor("grasp",
		entity.Col("grasp_id", &g.ID).Key(),
		entity.Col("scaled_model_id", &g.ScaledModelID).Read().Write(),
		entity.Col("hand_name", &g.HandName).Read().Write(),
		entity.Col("grasp_pregrasp_joints", &g.PregraspJoints).Read().Write(),
		entity.Col("grasp_grasp_joints", &g.GraspJoints).Read().Write(),
		entity.Col("grasp_pregrasp_pose", &g.PregraspPose).Read().Write(),
		entity.Col("grasp_grasp_pose", &g.GraspPose).Read().Write(),
		entity.Col("grasp_epsilon_quality", &g.EpsilonQuality).Read().Write(),
		entity.Col("grasp_volume_quality", &g.VolumeQuality).Read().Write(),
		entity.Col("grasp_cluster_rep", &g.ClusterRep).Read().Write(),
	)
}

// Mesh is the triangle mesh of an original model: a flat triangle index list
// and a flat vertex list (x,y,z triples).
type Mesh struct {
	OriginalModelID int64
	Triangles       []int32
	Vertices        []float64
}

func (m *Mesh) Bind() *entity.Descriptor {
	// The mesh key is the owning original model's id, assigned by the
	// caller rather than the database, so it is writable as well.
	return entity.NewDescriptor("mesh",
		entity.Col("original_model_id", &m.OriginalModelID).Key().Write(),
		entity.Col("mesh_triangle_list", &m.Triangles).Read().Write(),
		entity.Col("mesh_vertex_list", &m.Vertices).Read().Write(),
	)
}

// Perturbation is one sampled displacement of a grasp with its outcome score.
type Perturbation struct {
	ID      int64
	GraspID int64
	Deltas  []float64
	Score   float64
}

func (p *Perturbation) Bind() *entity.Descriptor {
	return entity.NewDescriptor("perturbation",
		entity.Col("perturbation_id", &p.ID).Key(),
		entity.Col("grasp_id", &p.GraspID).Read().Write(),
		entity.Col("perturbation_deltas", &p.Deltas).Read().Write(),
		entity.Col("perturbation_score", &p.Score).Read().Write(),
	)
}

// Variable is one row of the key/value configuration table (MODEL_ROOT etc).
type Variable struct {
	Name  string
	Value string
}

func (v *Variable) Bind() *entity.Descriptor {
	return entity.NewDescriptor("variable",
		entity.Col("variable_name", &v.Name).Key().Write(),
		entity.Col("variable_value", &v.Value).Read().Write(),
	)
}
