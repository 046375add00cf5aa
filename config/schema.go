package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/janelia-flyem/trainlabels/transform"
)

const schemaDefs = `{
	"triple": {
		"type": "array",
		"items": {"type": "integer"},
		"minItems": 3,
		"maxItems": 3
	},
	"transform": {
		"type": "object",
		"required": ["type", "source", "target"],
		"additionalProperties": false,
		"properties": {
			"type": {"enum": ["affinity", "boundary", "center_instance", "object_instance", "segmentation", "semantic", "synapse"]},
			"source": {"type": "string", "minLength": 1},
			"target": {"type": "string", "minLength": 1},
			"rebalance": {"type": "boolean"},
			"recompute": {"type": "boolean"},
			"base_w": {"type": "number", "minimum": 0, "exclusiveMaximum": 1},
			"dst": {"type": "array", "items": {"$ref": "#/$defs/triple"}, "minItems": 1},
			"ids": {"type": "array", "items": {"type": "integer", "minimum": 0}},
			"crop": {"$ref": "#/$defs/triple"},
			"crop_size": {"$ref": "#/$defs/triple"},
			"mask": {"type": "string"}
		}
	},
	"data": {
		"type": "object",
		"required": ["name"],
		"additionalProperties": false,
		"properties": {
			"name": {"type": "string", "minLength": 1},
			"file": {"type": "string"},
			"dtype": {"enum": ["uint8", "uint16", "uint32", "uint64", "float32", "float64"]},
			"shape": {"type": "array", "items": {"type": "integer", "minimum": 1}, "minItems": 3, "maxItems": 4},
			"filler": {
				"type": "object",
				"required": ["type"],
				"additionalProperties": false,
				"properties": {
					"type": {"enum": ["zero", "one", "constant"]},
					"value": {"type": "number"}
				}
			}
		}
	}
}`

const configSchema = `{
	"$defs": ` + schemaDefs + `,
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"logging": {
			"type": "object",
			"properties": {
				"logfile": {"type": "string"},
				"level": {"type": "string"},
				"max_log_size": {"type": "integer", "minimum": 0},
				"max_log_age": {"type": "integer", "minimum": 0}
			}
		},
		"store": {
			"type": "object",
			"properties": {
				"engine": {"type": "string"},
				"path": {"type": "string"},
				"bucket": {"type": "string"},
				"cache_mb": {"type": "integer", "minimum": 0},
				"compression": {"enum": ["", "none", "uncompressed", "snappy", "zstd"]},
				"in_memory": {"type": "boolean"}
			}
		},
		"kafka": {
			"type": "object",
			"properties": {
				"servers": {"type": "array", "items": {"type": "string"}},
				"topic": {"type": "string"}
			}
		},
		"server": {
			"type": "object",
			"properties": {
				"http_address": {"type": "string"},
				"cors_domains": {"type": "array", "items": {"type": "string"}}
			}
		},
		"auth": {
			"type": "object",
			"properties": {
				"secret_key": {"type": "string"},
				"token_hours": {"type": "integer", "minimum": 1}
			}
		},
		"data": {"type": "array", "items": {"$ref": "#/$defs/data"}},
		"transform": {"type": "array", "items": {"$ref": "#/$defs/transform"}}
	}
}`

const pipelineSchema = `{
	"$defs": ` + schemaDefs + `,
	"type": "array",
	"items": {"$ref": "#/$defs/transform"}
}`

var (
	compileOnce       sync.Once
	compiledConfig    *jsonschema.Schema
	compiledPipeline  *jsonschema.Schema
	compileSchemasErr error
)

func schemas() (config, pipeline *jsonschema.Schema, err error) {
	compileOnce.Do(func() {
		compiledConfig, compileSchemasErr = jsonschema.CompileString("config.json", configSchema)
		if compileSchemasErr != nil {
			return
		}
		compiledPipeline, compileSchemasErr = jsonschema.CompileString("pipeline.json", pipelineSchema)
	})
	return compiledConfig, compiledPipeline, compileSchemasErr
}

// jsonValue converts any decoded document into the generic JSON form expected
// by the schema validator.
func jsonValue(doc interface{}) (interface{}, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return decodeJSON(b)
}

func decodeJSON(b []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Validate checks a decoded configuration document against the configuration
// schema.
func Validate(doc interface{}) error {
	sch, _, err := schemas()
	if err != nil {
		return err
	}
	v, err := jsonValue(doc)
	if err != nil {
		return err
	}
	if err := sch.Validate(v); err != nil {
		return fmt.Errorf("invalid configuration: %v: %w", err, transform.ErrConfig)
	}
	return nil
}

// ParsePipelineJSON validates a JSON array of transform descriptions and
// returns the typed configurations.
func ParsePipelineJSON(body []byte) ([]transform.Config, error) {
	_, sch, err := schemas()
	if err != nil {
		return nil, err
	}
	v, err := decodeJSON(body)
	if err != nil {
		return nil, fmt.Errorf("malformed pipeline JSON: %v: %w", err, transform.ErrConfig)
	}
	if err := sch.Validate(v); err != nil {
		return nil, fmt.Errorf("invalid pipeline: %v: %w", err, transform.ErrConfig)
	}
	var configs []transform.Config
	if err := json.Unmarshal(body, &configs); err != nil {
		return nil, fmt.Errorf("pipeline JSON: %v: %w", err, transform.ErrConfig)
	}
	return configs, nil
}
