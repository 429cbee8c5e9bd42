package config

// Schema is the JSON Schema against which a loaded config.json is
// validated before it overrides any compiled-in defaults: a malformed
// config file fails fast at load time rather than surfacing as a
// confusing runtime error later.
const Schema = `{
	"type": "object",
	"description": "ada-trace daemon configuration",
	"properties": {
		"state_dir": {
			"type": "string",
			"description": "Directory holding the per-user sidecar session files and the registry database."
		},
		"loglevel": {
			"type": "string",
			"enum": ["debug", "info", "warn", "err", "crit"]
		},
		"logdate": { "type": "boolean" },
		"listen_addr": {
			"type": "string",
			"description": "Address the query-engine HTTP server listens on."
		},
		"nats_url": {
			"type": "string",
			"description": "Optional NATS server address for out-of-band stop signaling."
		},
		"rate_limit_per_sec": { "type": "number" },
		"rate_limit_burst": { "type": "integer" },
		"cache_capacity": { "type": "integer" },
		"jwt_secret": { "type": "string" },
		"user": { "type": "string" },
		"group": { "type": "string" }
	}
}`
