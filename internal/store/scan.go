package store

import (
	"github.com/persistorai/corpusgraph/internal/models"
)

// vertexColumns lists the columns selected for vertex queries.
const vertexColumns = `id, type_major, type_minor, content`

// neighborColumns lists the columns selected for neighbor-list queries.
const neighborColumns = `e.source, e.strength, e.from_degree, e.to_degree, e.energy_hits,
	v.id, v.type_major, v.type_minor, v.content`

// scanVertex scans a single row into models.VertexProperties.
func scanVertex(scan func(dest ...any) error) (models.VertexProperties, error) {
	var (
		p            models.VertexProperties
		major, minor int16
	)

	if err := scan(&p.ID, &major, &minor, &p.Content); err != nil {
		return models.VertexProperties{}, err
	}

	p.Type = models.VertexType{Major: models.TypeMajor(major), Minor: models.TypeMinor(minor)}

	return p, nil
}

// scanNeighbor scans a single row into a source id and its neighbor entry.
func scanNeighbor(scan func(dest ...any) error) (int64, models.Neighbor, error) {
	var (
		source       int64
		n            models.Neighbor
		major, minor int16
	)

	err := scan(
		&source,
		&n.Edge.Strength,
		&n.Edge.FromDegree,
		&n.Edge.ToDegree,
		&n.Edge.EnergyHits,
		&n.Vertex.ID,
		&major,
		&minor,
		&n.Vertex.Content,
	)
	if err != nil {
		return 0, models.Neighbor{}, err
	}

	n.Vertex.Type = models.VertexType{Major: models.TypeMajor(major), Minor: models.TypeMinor(minor)}

	return source, n, nil
}
