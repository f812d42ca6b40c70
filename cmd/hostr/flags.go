package main

import "time"

// GlobalFlags holds persistent flags shared by all client commands.
type GlobalFlags struct {
	ConfigPath string
	APIUrl     string
	APITimeout time.Duration
}

// ServeFlags holds flags for the serve command.
type ServeFlags struct {
	ConfigPath string
	Listen     string
}

// LogsFlags holds flags for the logs command.
type LogsFlags struct {
	Lines int
}

// SetCommandFlags holds flags for the set-command command.
type SetCommandFlags struct {
	Command string
}
