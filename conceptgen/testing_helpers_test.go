package conceptgen

import (
	"fmt"
	"strings"
)

// charEncoder is a byte-per-token Encoder used across the test suite so
// tests don't depend on a real tokenizer.json asset. Every ASCII byte
// maps to its own numeric value, which keeps encodings trivially
// decodable for assertions.
type charEncoder struct{}

func (charEncoder) EncodeLiteral(s string) ([]Token, error) {
	bs := []byte(s)
	out := make([]Token, len(bs))
	for i, b := range bs {
		out[i] = int(b)
	}
	return out, nil
}

func (charEncoder) Decode(ids []Token) string {
	var b strings.Builder
	for _, id := range ids {
		if id >= 0 && id < 256 {
			b.WriteByte(byte(id))
		} else {
			fmt.Fprintf(&b, "#%d", id)
		}
	}
	return b.String()
}

func (charEncoder) VocabSize() int { return 256 }

// smallSchemaSource is a compact fixture exercising two categories,
// a shared-prefix pair of parameter names, and a multi-dimensional
// parameter.
func smallSchemaSource() SchemaSource {
	return SchemaSource{
		Categories: []string{"Mug", "Box"},
		Templates: map[string]TemplateSpec{
			"Mug": {
				"Body": ParamSpec{
					"radius": []int{1},
					"radon":  []int{1}, // shares a 3-byte prefix with "radius"
				},
				"Handle": ParamSpec{
					"position": []int{3},
				},
			},
			"Box": {
				"Cuboid": ParamSpec{
					"dimensions": []int{3},
				},
			},
		},
	}
}
