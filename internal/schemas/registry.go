package schemas

import (
	"embed"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/jonathan/guideline-extractor/internal/types"
)

//go:embed content/*.schema.json guideline_metadata.schema.json
var schemaFiles embed.FS

// MetadataSchemaFile is the embedded schema for cover-page metadata
const MetadataSchemaFile = "guideline_metadata.schema.json"

// Registry holds one compiled schema per content type. It is read-only after construction.
type Registry struct {
	content  map[types.ContentType]*gojsonschema.Schema
	metadata *gojsonschema.Schema
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
	defaultErr      error
)

// DefaultRegistry returns the process-wide registry built from the embedded schemas
func DefaultRegistry() (*Registry, error) {
	defaultOnce.Do(func() {
		defaultRegistry, defaultErr = NewRegistry()
	})
	return defaultRegistry, defaultErr
}

// NewRegistry compiles every embedded content schema.
// It fails if any known content type lacks a schema.
func NewRegistry() (*Registry, error) {
	r := &Registry{content: make(map[types.ContentType]*gojsonschema.Schema)}

	for _, ct := range types.AllContentTypes() {
		schema, err := compile(contentSchemaFile(ct))
		if err != nil {
			return nil, err
		}
		r.content[ct] = schema
	}

	metadata, err := compile(MetadataSchemaFile)
	if err != nil {
		return nil, err
	}
	r.metadata = metadata

	return r, nil
}

// Validate checks doc against the schema registered for ct
func (r *Registry) Validate(ct types.ContentType, doc []byte) error {
	schema, ok := r.content[ct]
	if !ok {
		return fmt.Errorf("no schema registered for content type %q", ct)
	}
	return validateBytes(schema, doc)
}

// ValidateMetadata checks doc against the cover-page metadata schema
func (r *Registry) ValidateMetadata(doc []byte) error {
	return validateBytes(r.metadata, doc)
}

func contentSchemaFile(ct types.ContentType) string {
	return "content/" + string(ct) + ".schema.json"
}

func compile(path string) (*gojsonschema.Schema, error) {
	data, err := schemaFiles.ReadFile(path)
	if err != nil {
		return nil, &SchemaLoadError{Path: path, Message: "schema file missing", Cause: err}
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, &SchemaLoadError{Path: path, Message: "schema does not compile", Cause: err}
	}
	return schema, nil
}

func validateBytes(schema *gojsonschema.Schema, doc []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}
	return resultError(result)
}
