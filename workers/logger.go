package workers

import "lotpulse/models"

// LogFunc mirrors worker log lines into the operational scrape_logs table.
type LogFunc func(level models.LogLevel, source, message string)

// NoOpLogger does nothing (default)
var NoOpLogger LogFunc = func(level models.LogLevel, source, message string) {}
