// Package config loads runtime configuration for the DrinkShelf CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the API (http or https)
//	-d string   data directory
//	-p string   profile name
//	-t int      request timeout (seconds)
//	-i int      online status check interval (seconds)
//	-l string   log level
//	-m string   Prometheus listen address
//
// # JSON schema
//
// Durations use timex.Duration, so values can be either strings like "3s" or
// integer nanoseconds. Absent keys keep their default:
//
//	{
//	  "server_url": "https://drinkshelf.example.com",
//	  "data_dir": "/var/lib/drinkshelf",
//	  "profile": "work",
//	  "request_timeout": "10s",
//	  "online_check_interval": "3s",
//	  "log_level": "debug",
//	  "metrics_addr": "127.0.0.1:9102"
//	}
//
// This package does not read environment variables.
package config
