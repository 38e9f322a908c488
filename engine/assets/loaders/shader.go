package loaders

import (
	"encoding/binary"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/metadata"
)

const spirvMagic uint32 = 0x07230203

// ShaderLoader reads a SPIR-V binary into 32-bit words.
type ShaderLoader struct{}

func (sl *ShaderLoader) Load(path string) (*metadata.Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(core.ErrNotFound, "shader %s", path)
		}
		return nil, errors.Wrapf(err, "reading shader %s", path)
	}
	code, err := DecodeSPIRV(data)
	if err != nil {
		return nil, errors.Wrapf(err, "shader %s", path)
	}
	return &metadata.Resource{
		Name:     baseName(path),
		FullPath: path,
		Type:     metadata.ResourceTypeShader,
		DataSize: uint64(len(data)),
		Data:     code,
	}, nil
}

// DecodeSPIRV converts a little endian SPIR-V byte stream into words. The
// stream must be a whole number of words and start with the SPIR-V magic.
func DecodeSPIRV(data []byte) ([]uint32, error) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, errors.Wrapf(core.ErrInvalidShader, "size %d is not a multiple of 4", len(data))
	}
	code := make([]uint32, len(data)/4)
	for i := range code {
		code[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	if code[0] != spirvMagic {
		return nil, errors.Wrapf(core.ErrInvalidShader, "bad magic 0x%08x", code[0])
	}
	return code, nil
}
