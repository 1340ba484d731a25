// Package config loads the opsdeck configuration file.
//
// # Overview
//
// Configuration is a YAML document. Defaults are applied first, the file is
// decoded on top of them, environment overrides are applied last and the
// result is validated as a whole:
//
//	api:
//	  base_url: https://api.example.com
//	  timeout: 30s
//	polling:
//	  operation_interval: 10s
//	  environment_interval: 60s
//	provisioning:
//	  max_parallel: 4
//	dependencies:
//	  provider_domain: aptible.in
//	journal:
//	  path: ~/.opsdeck/journal.db
//	actions:
//	  nats_url: nats://127.0.0.1:4222
//	policy:
//	  paths: [~/.opsdeck/policies]
//	  disabled: [scale-limits]
//	telemetry:
//	  logging:
//	    level: info
//
// # Environment
//
// OPSDECK_API_URL and OPSDECK_TOKEN override api.base_url and api.token.
// OPSDECK_NATS_URL overrides actions.nats_url. OPSDECK_CONFIG selects the
// file read by DefaultPath.
//
// # Usage Example
//
//	cfg, err := config.Load(config.DefaultPath())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client, err := hal.NewClient(cfg.HAL())
package config
