package data

import (
	"fmt"

	"github.com/google/uuid"
)

type accessMode int

const (
	modeRead accessMode = iota
	modeWrite
)

// envelope is the serialized form of an entity in the backing store.
type envelope struct {
	ID       string                 `msgpack:"id"`
	Kind     string                 `msgpack:"kind"`
	Fields   map[string]interface{} `msgpack:"fields"`
	Children map[string]envelope    `msgpack:"children,omitempty"`
}

// Data is a scoped handle to a typed entity. A handle is either read-locked
// or write-locked; fields may only be mutated under a write scope. Release
// must be called on every exit path.
type Data struct {
	id       string
	kind     Kind
	mode     accessMode
	fields   map[string]interface{}
	children map[string]*Data
	schema   kindSchema
	mgr      *Manager
	parent   *Data
	released bool
}

// ID returns the entity id.
func (d *Data) ID() string {
	return d.id
}

// Kind returns the entity's type tag.
func (d *Data) Kind() Kind {
	return d.kind
}

// Set assigns a field value. Only legal under a write scope and for fields
// the entity's kind declares.
func (d *Data) Set(field string, value interface{}) error {
	if d.released {
		return ErrReleased
	}
	if d.mode != modeWrite {
		return fmt.Errorf("entity %s is read-only", d.id)
	}
	if !d.schema.fields[field] {
		return fmt.Errorf("kind %s has no field %q", d.kind, field)
	}
	d.fields[field] = value
	return nil
}

// Get returns a field value.
func (d *Data) Get(field string) (interface{}, error) {
	if d.released {
		return nil, ErrReleased
	}
	if !d.schema.fields[field] {
		return nil, fmt.Errorf("kind %s has no field %q", d.kind, field)
	}
	return d.fields[field], nil
}

// CreateChild allocates a sub-entity under a container-kinded parent. The
// parent owns the child's lifetime: children are published when the parent's
// write scope exits, never independently.
func (d *Data) CreateChild(kind Kind, index string) (*Data, error) {
	if d.released {
		return nil, ErrReleased
	}
	if d.mode != modeWrite {
		return nil, fmt.Errorf("entity %s is read-only", d.id)
	}
	if !d.schema.container {
		return nil, fmt.Errorf("kind %s is not a container", d.kind)
	}
	schema, err := schemaFor(kind)
	if err != nil {
		return nil, err
	}
	if _, exists := d.children[index]; exists {
		return nil, fmt.Errorf("child %q already exists on entity %s", index, d.id)
	}
	child := &Data{
		id:       uuid.NewString(),
		kind:     kind,
		mode:     modeWrite,
		fields:   make(map[string]interface{}),
		children: make(map[string]*Data),
		schema:   schema,
		mgr:      d.mgr,
		parent:   d,
	}
	d.children[index] = child
	return child, nil
}

// Child resolves a sub-entity by index.
func (d *Data) Child(index string) (*Data, error) {
	if d.released {
		return nil, ErrReleased
	}
	child, ok := d.children[index]
	if !ok {
		return nil, fmt.Errorf("%w: child %q of %s", ErrNotFound, index, d.id)
	}
	return child, nil
}

// ChildIndexes lists the indexes of all sub-entities.
func (d *Data) ChildIndexes() []string {
	indexes := make([]string, 0, len(d.children))
	for idx := range d.children {
		indexes = append(indexes, idx)
	}
	return indexes
}

// ToMap returns the entity's materialized form, the shape the result cache
// serializes.
func (d *Data) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"id":     d.id,
		"kind":   string(d.kind),
		"fields": d.fields,
	}
	if len(d.children) > 0 {
		children := make(map[string]interface{}, len(d.children))
		for idx, child := range d.children {
			children[idx] = child.ToMap()
		}
		m["children"] = children
	}
	return m
}

func (d *Data) toEnvelope() envelope {
	env := envelope{
		ID:     d.id,
		Kind:   string(d.kind),
		Fields: d.fields,
	}
	if len(d.children) > 0 {
		env.Children = make(map[string]envelope, len(d.children))
		for idx, child := range d.children {
			env.Children[idx] = child.toEnvelope()
		}
	}
	return env
}

func fromEnvelope(env envelope, mgr *Manager, parent *Data) (*Data, error) {
	schema, err := schemaFor(Kind(env.Kind))
	if err != nil {
		return nil, err
	}
	d := &Data{
		id:       env.ID,
		kind:     Kind(env.Kind),
		mode:     modeRead,
		fields:   env.Fields,
		children: make(map[string]*Data),
		schema:   schema,
		mgr:      mgr,
		parent:   parent,
	}
	if d.fields == nil {
		d.fields = make(map[string]interface{})
	}
	for idx, childEnv := range env.Children {
		child, err := fromEnvelope(childEnv, mgr, d)
		if err != nil {
			return nil, err
		}
		d.children[idx] = child
	}
	return d, nil
}
