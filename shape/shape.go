// Package shape converts stored mesh rows into triangle-mesh values usable
// by planning and visualization code.
package shape

import (
	"fmt"

	"github.com/manipulab/objectkit/model"
)

type Point struct {
	X, Y, Z float64
}

// Shape is a triangle mesh: Triangles holds vertex indices in groups of
// three, Vertices the referenced points.
type Shape struct {
	Triangles []int32
	Vertices  []Point
}

// FromMesh unpacks a mesh's flat vertex list (x,y,z triples) into points.
func FromMesh(m *model.Mesh) (*Shape, error) {
	if len(m.Vertices)%3 != 0 {
		return nil, fmt.Errorf("mesh for model %d: vertex list length %d is not a multiple of 3",
			m.OriginalModelID, len(m.Vertices))
	}
	s := &Shape{
		Triangles: append([]int32(nil), m.Triangles...),
		Vertices:  make([]Point, 0, len(m.Vertices)/3),
	}
	for i := 0; i+2 < len(m.Vertices); i += 3 {
		s.Vertices = append(s.Vertices, Point{
			X: m.Vertices[i],
			Y: m.Vertices[i+1],
			Z: m.Vertices[i+2],
		})
	}
	return s, nil
}
