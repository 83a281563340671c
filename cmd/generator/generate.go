package main

import (
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"time"
)

// carProperties is the schema used when no config is given. Value pools and
// ranges live in the mapping's "meta" parameter, which Elasticsearch stores
// without interpreting.
var carProperties = map[string]any{
	"make": map[string]any{
		"type": "keyword",
		"meta": map[string]any{"values": "Toyota,Honda,Ford,BMW,Mercedes,Audi,Chevrolet,Nissan"},
	},
	"model": map[string]any{
		"type": "text",
		"meta": map[string]any{"values": "Camry,Corolla,Civic,Accord,Mustang,Bronco,X5,GLC,A4,Tahoe,Altima"},
	},
	"year": map[string]any{
		"type": "integer",
		"meta": map[string]any{"min": "2015", "max": "2024"},
	},
	"color": map[string]any{
		"type": "keyword",
		"meta": map[string]any{"values": "Red,Blue,Black,White,Silver,Gray,Green,Yellow,Orange,Purple"},
	},
}

// Generator builds random documents following a property schema.
type Generator struct {
	properties map[string]any
	rng        *rand.Rand
	now        time.Time
}

func NewGenerator(properties map[string]any, seed uint64) *Generator {
	return &Generator{
		properties: properties,
		rng:        rand.New(rand.NewPCG(seed, seed)),
		now:        time.Now().UTC(),
	}
}

// Document returns one random document. Fields with an unknown type are left out.
func (g *Generator) Document() map[string]any {
	return g.object(g.properties)
}

func (g *Generator) object(properties map[string]any) map[string]any {
	doc := make(map[string]any, len(properties))

	// sorted so that a seed always gives the same document
	fields := make([]string, 0, len(properties))
	for field := range properties {
		fields = append(fields, field)
	}
	slices.Sort(fields)

	for _, field := range fields {
		prop, ok := properties[field].(map[string]any)
		if !ok {
			continue
		}
		if v, ok := g.value(field, prop); ok {
			doc[field] = v
		}
	}
	return doc
}

func (g *Generator) value(field string, prop map[string]any) (any, bool) {
	meta, _ := prop["meta"].(map[string]any)
	typ, _ := prop["type"].(string)

	if nested, ok := prop["properties"].(map[string]any); ok && (typ == "" || typ == "object") {
		return g.object(nested), true
	}

	switch typ {
	case "keyword", "text":
		if values := metaValues(meta); len(values) > 0 {
			return values[g.rng.IntN(len(values))], true
		}
		return field + "-" + strconv.Itoa(g.rng.IntN(1000)), true
	case "integer", "long", "short":
		lo, hi := metaRange(meta, 0, 999)
		return lo + g.rng.IntN(hi-lo+1), true
	case "float", "double", "scaled_float":
		lo, hi := metaRange(meta, 0, 1000)
		return float64(lo) + g.rng.Float64()*float64(hi-lo), true
	case "boolean":
		return g.rng.IntN(2) == 1, true
	case "date":
		age := time.Duration(g.rng.IntN(365*24)) * time.Hour
		return g.now.Add(-age).Format(time.RFC3339), true
	default:
		return nil, false
	}
}

func metaValues(meta map[string]any) []string {
	raw, _ := meta["values"].(string)
	var values []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}

func metaRange(meta map[string]any, lo, hi int) (int, int) {
	if v, err := strconv.Atoi(metaString(meta, "min")); err == nil {
		lo = v
	}
	if v, err := strconv.Atoi(metaString(meta, "max")); err == nil {
		hi = v
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

func metaString(meta map[string]any, key string) string {
	switch v := meta[key].(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	default:
		return ""
	}
}
