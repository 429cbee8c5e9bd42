package config

import (
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/adatrace/ada-trace/pkg/log"
)

// Validate checks instance against schema, exiting the process on any
// compile or validation failure — config errors should surface at
// startup, not mid-run.
func Validate(schema string, instance json.RawMessage) {
	sch, err := jsonschema.CompileString("schema.json", schema)
	if err != nil {
		log.Fatalf("config: invalid schema: %v", err)
	}

	var v any
	if err := json.Unmarshal(instance, &v); err != nil {
		log.Fatalf("config: malformed config.json: %v", err)
	}

	if err := sch.Validate(v); err != nil {
		log.Fatalf("config: %v", err)
	}
}
