package loaders

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/metadata"
)

// ModelLoader parses Wavefront OBJ files into an indexed mesh. Polygons are
// triangulated as fans and identical corners share one vertex.
type ModelLoader struct{}

func (ml *ModelLoader) Load(path string) (*metadata.Resource, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(core.ErrNotFound, "model %s", path)
		}
		return nil, errors.Wrapf(err, "opening model %s", path)
	}
	defer file.Close()

	mesh, err := ParseOBJ(file)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing model %s", path)
	}
	mesh.Name = baseName(path)
	return &metadata.Resource{
		Name:     mesh.Name,
		FullPath: path,
		Type:     metadata.ResourceTypeModel,
		DataSize: uint64(len(mesh.Vertices))*uint64(metadata.VertexSize) + uint64(len(mesh.Indices))*4,
		Data:     mesh,
	}, nil
}

// objCorner identifies one face corner. normal is only used when the file
// has no vn reference for the corner.
type objCorner struct {
	v, vt, vn int
	normal    mgl32.Vec3
}

type objParser struct {
	positions []mgl32.Vec3
	normals   []mgl32.Vec3
	uvs       []mgl32.Vec2

	mesh  *metadata.Mesh
	index map[objCorner]uint32
}

// ParseOBJ reads positions, normals, texture coordinates and faces. Colours
// are set to the normal and v is flipped to match Vulkan's texture origin.
func ParseOBJ(r io.Reader) (*metadata.Mesh, error) {
	p := &objParser{
		mesh:  &metadata.Mesh{},
		index: make(map[objCorner]uint32),
	}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		// Skip comments and empty lines
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		var err error
		switch fields[0] {
		case "v":
			var v []float32
			if v, err = parseFloats(fields[1:], 3); err == nil {
				p.positions = append(p.positions, mgl32.Vec3{v[0], v[1], v[2]})
			}
		case "vn":
			var v []float32
			if v, err = parseFloats(fields[1:], 3); err == nil {
				n := mgl32.Vec3{v[0], v[1], v[2]}
				if n.Len() > 0 {
					n = n.Normalize()
				}
				p.normals = append(p.normals, n)
			}
		case "vt":
			var v []float32
			if v, err = parseFloats(fields[1:], 2); err == nil {
				p.uvs = append(p.uvs, mgl32.Vec2{v[0], v[1]})
			}
		case "f":
			err = p.face(fields[1:])
		default:
			// o, g, s, mtllib, usemtl and friends carry nothing we draw.
		}
		if err != nil {
			return nil, errors.Wrapf(core.ErrInvalidArgument, "line %d: %v", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(p.mesh.Indices) == 0 {
		return nil, errors.Wrap(core.ErrInvalidArgument, "no faces")
	}
	return p.mesh, nil
}

func parseFloats(fields []string, n int) ([]float32, error) {
	if len(fields) < n {
		return nil, errors.Newf("expected %d values, got %d", n, len(fields))
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return nil, err
		}
		out[i] = float32(f)
	}
	return out, nil
}

// resolve turns a 1-based or negative OBJ reference into a 0-based index.
// Empty references resolve to -1.
func resolve(ref string, count int) (int, error) {
	if ref == "" {
		return -1, nil
	}
	i, err := strconv.Atoi(ref)
	if err != nil {
		return 0, err
	}
	switch {
	case i > 0 && i <= count:
		return i - 1, nil
	case i < 0 && -i <= count:
		return count + i, nil
	}
	return 0, errors.Newf("reference %d out of range (%d entries)", i, count)
}

func (p *objParser) face(fields []string) error {
	if len(fields) < 3 {
		return errors.Newf("face has %d corners", len(fields))
	}
	corners := make([]objCorner, len(fields))
	for i, field := range fields {
		parts := strings.Split(field, "/")
		c := objCorner{vt: -1, vn: -1}
		var err error
		if c.v, err = resolve(parts[0], len(p.positions)); err != nil {
			return err
		}
		if c.v < 0 {
			return errors.New("face corner without a position")
		}
		if len(parts) > 1 {
			if c.vt, err = resolve(parts[1], len(p.uvs)); err != nil {
				return err
			}
		}
		if len(parts) > 2 {
			if c.vn, err = resolve(parts[2], len(p.normals)); err != nil {
				return err
			}
		}
		corners[i] = c
	}

	// Corners without a normal get the flat face normal.
	a := p.positions[corners[0].v]
	faceNormal := p.positions[corners[1].v].Sub(a).Cross(p.positions[corners[2].v].Sub(a))
	if faceNormal.Len() > 0 {
		faceNormal = faceNormal.Normalize()
	}
	for i := range corners {
		if corners[i].vn < 0 {
			corners[i].normal = faceNormal
		}
	}

	for i := 1; i+1 < len(corners); i++ {
		p.emit(corners[0])
		p.emit(corners[i])
		p.emit(corners[i+1])
	}
	return nil
}

func (p *objParser) emit(c objCorner) {
	if idx, ok := p.index[c]; ok {
		p.mesh.Indices = append(p.mesh.Indices, idx)
		return
	}
	normal := c.normal
	if c.vn >= 0 {
		normal = p.normals[c.vn]
	}
	var uv mgl32.Vec2
	if c.vt >= 0 {
		uv = mgl32.Vec2{p.uvs[c.vt].X(), 1 - p.uvs[c.vt].Y()}
	}
	idx := uint32(len(p.mesh.Vertices))
	p.mesh.Vertices = append(p.mesh.Vertices, metadata.Vertex{
		Position: p.positions[c.v],
		Normal:   normal,
		Color:    normal,
		UV:       uv,
	})
	p.index[c] = idx
	p.mesh.Indices = append(p.mesh.Indices, idx)
}
