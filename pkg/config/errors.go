package config

import "errors"

var (
	// ErrParsingConfig is returned when environment variables cannot be parsed into the config struct.
	ErrParsingConfig = errors.New("failed to parse environment variables into config")

	// ErrEnvFileNotLoaded is returned when an explicitly named .env file cannot be read.
	ErrEnvFileNotLoaded = errors.New("failed to load env file")
)
