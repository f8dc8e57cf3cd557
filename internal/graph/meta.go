package graph

import (
	"context"
	"fmt"
)

// Meta returns collection metadata, from storage when attached.
func (g *Graph) Meta(ctx context.Context, key, def string) (string, error) {
	if g.storage != nil {
		v, err := g.storage.GetMeta(ctx, key, def)
		if err != nil {
			return "", fmt.Errorf("reading meta %q: %w", key, err)
		}

		return v, nil
	}

	if v, ok := g.meta[key]; ok {
		return v, nil
	}

	return def, nil
}

// SetMeta stores collection metadata, in storage when attached.
func (g *Graph) SetMeta(ctx context.Context, key, value string) error {
	if g.storage != nil {
		if err := g.storage.SetMeta(ctx, key, value); err != nil {
			return fmt.Errorf("writing meta %q: %w", key, err)
		}

		return nil
	}

	g.meta[key] = value

	return nil
}

// VertexMeta returns a metadata value of a resident vertex. Values already
// carried by the vertex win; otherwise storage is asked.
func (g *Graph) VertexMeta(ctx context.Context, h VertexHandle, key string) (string, error) {
	v, err := g.vertexOrNotFound(h)
	if err != nil {
		return "", err
	}

	if val, ok := v.Meta[key]; ok {
		return val, nil
	}

	if g.storage == nil {
		return "", nil
	}

	val, err := g.storage.GetVertexMeta(ctx, v.ID, key)
	if err != nil {
		return "", fmt.Errorf("reading vertex %d meta %q: %w", v.ID, key, err)
	}

	return val, nil
}

// SetVertexMeta stores a metadata value on a resident vertex and in storage when attached.
func (g *Graph) SetVertexMeta(ctx context.Context, h VertexHandle, key, value string) error {
	v, err := g.vertexOrNotFound(h)
	if err != nil {
		return err
	}

	if g.storage != nil {
		if err := g.storage.SetVertexMeta(ctx, v.ID, key, value); err != nil {
			return fmt.Errorf("writing vertex %d meta %q: %w", v.ID, key, err)
		}
	}

	if v.Meta == nil {
		v.Meta = make(map[string]string)
	}

	v.Meta[key] = value

	return nil
}
