package core

import (
	"bytes"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaneIndices(t *testing.T) {
	p := NewPlane(3)
	m := p.M()
	assert.Len(t, m.Vertices, 9)
	assert.Len(t, m.Indices, 2*2*6)
	for _, idx := range m.Indices {
		assert.Less(t, idx, uint32(9))
	}
	assert.Equal(t, []uint32{0, 3, 1, 1, 3, 4}, m.Indices[:6])
}

func TestPlaneFlatNormalsPointUp(t *testing.T) {
	p := NewPlane(4)
	require.NoError(t, p.Construct(make([]float32, 16), 1))

	m := p.M()
	assert.Equal(t, mgl32.Vec3{-1.5, 0, -1.5}, m.Vertices[0])
	assert.Equal(t, mgl32.Vec3{1.5, 0, 1.5}, m.Vertices[15])
	for i, n := range m.Normals {
		assert.InDelta(t, 1, n.Y(), 1e-6, "normal %d", i)
	}

	assert.Error(t, p.Construct(make([]float32, 15), 1))
}

func TestPlaneSlopeNormals(t *testing.T) {
	p := NewPlane(3)
	heights := []float32{0, 1, 2, 0, 1, 2, 0, 1, 2}
	require.NoError(t, p.Construct(heights, 1))
	for _, n := range p.M().Normals {
		// Height rises along +x, so normals lean towards -x.
		assert.Less(t, n.X(), float32(0))
		assert.Greater(t, n.Y(), float32(0))
	}
}

func TestWriteOBJ(t *testing.T) {
	p := NewPlane(2)
	require.NoError(t, p.Construct([]float32{0, 1, 2, 3}, 0.5))

	var buf bytes.Buffer
	require.NoError(t, p.M().WriteOBJ(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4+4+2)
	assert.Equal(t, "v -0.5 0 -0.5", lines[0])
	assert.Equal(t, "v 0.5 1.5 0.5", lines[3])
	assert.Equal(t, "f 1//1 3//3 2//2", lines[8])
}
