package archive

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const recordSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["id", "title", "site", "created", "kind"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "title": {"type": "string"},
    "body": {"type": "string"},
    "uri": {"type": "string"},
    "site": {"type": "string"},
    "created": {"type": "string", "format": "date-time"},
    "easyCreatedTime": {"type": "string"},
    "kind": {"enum": ["text", "audio", "image"]}
  },
  "if": {"properties": {"kind": {"const": "text"}}},
  "then": {"required": ["body"]},
  "else": {"required": ["uri"]}
}`

const blobSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["id", "contentType", "file", "size"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "contentType": {"type": "string"},
    "file": {"type": "string", "pattern": "^[0-9]+\\.bin$"},
    "size": {"type": "integer", "minimum": 1}
  }
}`

// validator checks archive lines against the record and blob schemas.
type validator struct {
	record *jsonschema.Schema
	blob   *jsonschema.Schema
}

func newValidator() (*validator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	for name, src := range map[string]string{"record.json": recordSchema, "blob.json": blobSchema} {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		if err := c.AddResource(name, doc); err != nil {
			return nil, fmt.Errorf("adding %s: %w", name, err)
		}
	}
	record, err := c.Compile("record.json")
	if err != nil {
		return nil, err
	}
	blob, err := c.Compile("blob.json")
	if err != nil {
		return nil, err
	}
	return &validator{record: record, blob: blob}, nil
}

func validate(s *jsonschema.Schema, line []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(line))
	if err != nil {
		return err
	}
	return s.Validate(inst)
}
