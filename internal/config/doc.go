// Package config loads the penguins server configuration.
//
// The configuration lives in penguins.json or penguins.yaml. Every field is
// optional; missing values take the defaults from New.
//
// # Configuration File Structure
//
//	server:
//	  address: "0.0.0.0:8050"
//	  shutdownTimeout: 15s
//	data:
//	  source: s3://my-bucket/penguins.csv
//	  region: eu-west-1
//	session:
//	  maxSessions: 500
//	  idleTimeout: 30m
//	  store: bolt
//	  storePath: /var/lib/penguins/sessions.db
//	log:
//	  level: debug
//	  format: json
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg.ApplyEnv()
//	logger := cfg.Logger(os.Stderr)
package config
