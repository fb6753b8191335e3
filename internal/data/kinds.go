package data

import "fmt"

// Kind identifies the type of a data entity. The kind fixes the set of
// fields the entity may carry.
type Kind string

const (
	KindScalarSeries    Kind = "scalar_series"
	KindHistSeries      Kind = "hist_series"
	KindShotList        Kind = "shot_list"
	KindAnnotationList  Kind = "annotation_list"
	KindEmbeddingList   Kind = "embedding_list"
	KindClusterList     Kind = "cluster_list"
	KindStringList      Kind = "string_list"
	KindImageCollection Kind = "image_collection"
	KindAudio           Kind = "audio"
	KindVideo           Kind = "video"
)

// kindSchema declares the legal fields for a kind and whether the kind is a
// container that owns child entities.
type kindSchema struct {
	fields    map[string]bool
	container bool
}

var kindSchemas = map[Kind]kindSchema{
	KindScalarSeries:    {fields: set("y", "time", "delta_time")},
	KindHistSeries:      {fields: set("hist", "time", "delta_time")},
	KindShotList:        {fields: set("shots")},
	KindAnnotationList:  {fields: set("annotations")},
	KindEmbeddingList:   {fields: set("embeddings", "time", "delta_time")},
	KindClusterList:     {fields: set("clusters"), container: true},
	KindStringList:      {fields: set("values")},
	KindImageCollection: {fields: set("ext"), container: true},
	KindAudio:           {fields: set("ext", "path")},
	KindVideo:           {fields: set("ext", "path")},
}

func set(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// IsRegistered reports whether kind is a known entity kind.
func IsRegistered(kind Kind) bool {
	_, ok := kindSchemas[kind]
	return ok
}

func schemaFor(kind Kind) (kindSchema, error) {
	s, ok := kindSchemas[kind]
	if !ok {
		return kindSchema{}, fmt.Errorf("%w: %s", ErrUnknownType, kind)
	}
	return s, nil
}
