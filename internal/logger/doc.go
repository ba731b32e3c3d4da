// Package logger holds the console zap logger shared by formulactl.
//
// Services take a context and log through it; WithName, WithKV and
// WithFields scope the logger a context carries, and FromContext falls
// back to the package logger whose level follows --log-level.
package logger
