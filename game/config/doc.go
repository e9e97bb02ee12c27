// Package config provides configuration management for the capy arena relay.
//
// The config package handles:
//   - Built-in defaults for every setting
//   - Loading overrides from a YAML or JSON file
//   - Writing a starter configuration file
//   - Validation that reports every problem at once
//
// Configuration Format:
//
// The file format is chosen by extension: .yaml and .yml are read as YAML,
// anything else as JSON. Fields missing from the file keep their defaults.
//
//	server:
//	  host: 0.0.0.0
//	  port: 8080
//	  socket_path: /ws
//	  static_dir: ./public
//	  allowed_origins: ["*"]
//	relay:
//	  capacity: 2
//	  max_message_size: 4096
//	  send_buffer: 256
//	ngrok:
//	  enabled: false
//
// Command-line flags and environment variables are applied by the command on
// top of the loaded file.
//
// Usage:
//
//	cfg, err := config.Load("relay.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if err := cfg.Validate(); err != nil {
//		log.Fatal(err)
//	}
package config
