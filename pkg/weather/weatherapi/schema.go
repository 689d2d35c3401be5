package weatherapi

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// forecastSchema lists only the fields the widget reads. Anything else in
// the body is ignored.
const forecastSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["location", "current", "forecast"],
  "properties": {
    "location": {
      "type": "object",
      "required": ["name", "region", "country"],
      "properties": {
        "name": {"type": "string"},
        "region": {"type": "string"},
        "country": {"type": "string"}
      }
    },
    "current": {
      "type": "object",
      "required": ["condition", "is_day", "temp_c"],
      "properties": {
        "condition": {
          "type": "object",
          "required": ["text", "icon"],
          "properties": {
            "text": {"type": "string"},
            "icon": {"type": "string"}
          }
        },
        "is_day": {"type": "integer", "enum": [0, 1]},
        "temp_c": {"type": "number"}
      }
    },
    "forecast": {
      "type": "object",
      "required": ["forecastday"],
      "properties": {
        "forecastday": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["date", "day"],
            "properties": {
              "date": {"type": "string", "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}$"},
              "day": {
                "type": "object",
                "required": ["mintemp_c", "maxtemp_c"],
                "properties": {
                  "mintemp_c": {"type": "number"},
                  "maxtemp_c": {"type": "number"}
                }
              }
            }
          }
        }
      }
    }
  }
}`

func compileSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("forecast.json", strings.NewReader(forecastSchema)); err != nil {
		return nil, err
	}
	return compiler.Compile("forecast.json")
}
