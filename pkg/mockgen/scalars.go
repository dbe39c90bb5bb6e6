package mockgen

import (
	"hash/fnv"
	"math"
	mathrand "math/rand/v2"

	"github.com/google/uuid"

	"github.com/getmockd/qiufen/pkg/schema"
)

// Values produced for built-in scalars when no seed is configured.
const (
	DefaultInt     = 42
	DefaultFloat   = 4.2
	DefaultString  = "Hello World"
	DefaultBoolean = true
)

// idNamespace scopes the name-based UUIDs generated for ID fields.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/getmockd/qiufen"))

var (
	seededAdjectives = []string{
		"Small", "Ergonomic", "Rustic", "Intelligent", "Gorgeous", "Incredible",
		"Fantastic", "Practical", "Sleek", "Awesome", "Generic", "Handcrafted",
	}
	seededNouns = []string{
		"Chair", "Car", "Computer", "Keyboard", "Mouse", "Bike",
		"Ball", "Gloves", "Pants", "Shirt", "Table", "Shoes",
	}
)

// rngFor returns a PRNG derived from the seed, the value's path and the
// request salt. Equal inputs always give the same stream.
func (g *Generator) rngFor(path Path, salt uint64) *mathrand.Rand {
	h := fnv.New64a()
	_, _ = h.Write([]byte(path.String()))
	return mathrand.New(mathrand.NewPCG(uint64(*g.seed), h.Sum64()^salt))
}

// rngReader adapts a PRNG to io.Reader for uuid.
type rngReader struct{ rng *mathrand.Rand }

func (r rngReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(r.rng.IntN(256))
	}
	return len(p), nil
}

func (g *Generator) scalar(name string, path Path, salt uint64) any {
	if g.seed == nil {
		switch name {
		case "Int":
			return DefaultInt
		case "Float":
			return DefaultFloat
		case "String":
			return DefaultString
		case "Boolean":
			return DefaultBoolean
		case "ID":
			return uuid.NewSHA1(idNamespace, []byte(path.String())).String()
		}
		return name + "_mock"
	}

	rng := g.rngFor(path, salt)
	switch name {
	case "Int":
		return rng.IntN(1000)
	case "Float":
		return math.Round(rng.Float64()*100000) / 100
	case "String":
		return seededAdjectives[rng.IntN(len(seededAdjectives))] + " " + seededNouns[rng.IntN(len(seededNouns))]
	case "Boolean":
		return rng.IntN(2) == 1
	case "ID":
		id, err := uuid.NewRandomFromReader(rngReader{rng})
		if err != nil {
			return uuid.NewSHA1(idNamespace, []byte(path.String())).String()
		}
		return id.String()
	}
	return name + "_mock"
}

func (g *Generator) enum(t *schema.Type, path Path, salt uint64) any {
	if len(t.EnumValues) == 0 {
		return nil
	}
	if g.seed == nil {
		return t.EnumValues[0]
	}
	return t.EnumValues[g.rngFor(path, salt).IntN(len(t.EnumValues))]
}
