package workers

import "dealscout/models"

// LogFunc is a function that logs to the ops store's log table
type LogFunc func(level models.LogLevel, source, message string)

// NoOpLogger does nothing (default)
var NoOpLogger LogFunc = func(level models.LogLevel, source, message string) {}
