// Package config handles YAML configuration loading with environment
// variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable
// interpolation. The bearer token itself never appears in the file;
// feed.token_env names the environment variable that holds it.
package config
