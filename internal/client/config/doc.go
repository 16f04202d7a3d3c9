// Package config loads runtime configuration for a GophVault client.
//
// Sources, later ones overriding earlier ones:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. Command-line flags.
//
// Supported flags
//
//	-a string     address:port of the backend gRPC endpoint
//	-k string     access token
//	-i string     device id
//	-f string     local cache directory
//	-m int        sync attempts per entry
//	-r duration   request timeout
//
// JSON durations accept "3s" strings or integer nanoseconds:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "device_id": "alice@laptop",
//	  "request_timeout": "10s"
//	}
package config
