// Package config loads settingsync configuration files.
//
// Two formats are accepted, chosen by file extension:
//
//	.yaml, .yml  decoded with gopkg.in/yaml.v3 on top of Default()
//	.cue         unified with the embedded #Config schema, which carries
//	             the same defaults and rejects unknown fields
//
// Example (YAML):
//
//	server_url: https://firefox.settings.services.mozilla.com/v1
//	bucket: main
//	collection: onecrl
//	storage:
//	  backend: sqlite
//	  path: /var/lib/settingsync/settings.db
//	verifier:
//	  kind: content-signature
//	  root_hash: "97:E8:BA:9C:..."
//	trust_local: false
//
// Loaded configurations are not validated; call Validate once command-line
// overrides have been applied.
package config
