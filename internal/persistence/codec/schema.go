package codec

import "github.com/santhosh-tekuri/jsonschema/v5"

const buildingSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["object", "floors", "template_id"],
  "properties": {
    "object": {"type": "string"},
    "template_id": {"type": "string"},
    "floors": {
      "type": "object",
      "propertyNames": {"pattern": "^-?[0-9]+$"},
      "additionalProperties": {"$ref": "#/$defs/floor"}
    },
    "roof": {"oneOf": [{"type": "null"}, {"$ref": "#/$defs/roof"}]}
  },
  "$defs": {
    "element": {
      "type": "object",
      "required": ["object", "side"],
      "properties": {
        "object": {"type": "string"},
        "side": {"type": "integer", "minimum": 0, "maximum": 3}
      }
    },
    "sides": {
      "type": "object",
      "propertyNames": {"pattern": "^[0-3]$"},
      "additionalProperties": {"type": "array", "items": {"$ref": "#/$defs/element"}}
    },
    "corners": {
      "type": "object",
      "propertyNames": {"pattern": "^[0-3]$"},
      "additionalProperties": {"$ref": "#/$defs/element"}
    },
    "floor": {
      "type": "object",
      "required": ["object", "level", "walls", "corners", "template_id", "seed"],
      "properties": {
        "object": {"type": "string"},
        "level": {"type": "integer"},
        "walls": {"$ref": "#/$defs/sides"},
        "corners": {"$ref": "#/$defs/corners"},
        "template_id": {"type": "string"},
        "seed": {"type": "integer"}
      }
    },
    "roof": {
      "type": "object",
      "required": ["object", "tiles", "corners", "template_id", "seed"],
      "properties": {
        "object": {"type": "string"},
        "tiles": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["object", "tile_position"],
            "properties": {
              "object": {"type": "string"},
              "tile_position": {
                "type": "array",
                "items": {"type": "integer"},
                "minItems": 2,
                "maxItems": 2
              }
            }
          }
        },
        "edges": {"$ref": "#/$defs/sides"},
        "corners": {"$ref": "#/$defs/corners"},
        "template_id": {"type": "string"},
        "seed": {"type": "integer"}
      }
    }
  }
}`

const templateSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["id", "floor_templates", "roof_templates"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "floor_templates": {
      "type": "array",
      "items": {
        "allOf": [
          {"$ref": "#/$defs/base"},
          {"required": ["walls", "corners"],
           "properties": {
             "walls": {"$ref": "#/$defs/names"},
             "corners": {"$ref": "#/$defs/names"}
           }}
        ]
      }
    },
    "roof_templates": {
      "type": "array",
      "items": {
        "allOf": [
          {"$ref": "#/$defs/base"},
          {"required": ["tiles", "edges", "corners"],
           "properties": {
             "tiles": {"$ref": "#/$defs/names"},
             "edges": {"$ref": "#/$defs/names"},
             "corners": {"$ref": "#/$defs/names"}
           }}
        ]
      }
    }
  },
  "$defs": {
    "names": {"type": "array", "items": {"type": "string"}},
    "base": {
      "type": "object",
      "required": ["id", "unit", "width", "depth"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "unit": {
          "type": "array",
          "items": {"type": "number", "exclusiveMinimum": 0},
          "minItems": 3,
          "maxItems": 3
        },
        "width": {"type": "integer", "minimum": 1},
        "depth": {"type": "integer", "minimum": 1}
      }
    }
  }
}`

var (
	buildingSchema = jsonschema.MustCompileString("building.schema.json", buildingSchemaJSON)
	templateSchema = jsonschema.MustCompileString("template.schema.json", templateSchemaJSON)
)
