// Package config loads the server settings from an optional config file and
// RENAISSANCE_* environment variables, applies defaults, and validates the
// result. Flash durations, retry limits and cache sizes of the training
// engine are all tuned here.
package config
