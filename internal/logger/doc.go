// Package logger wraps zap for the step alarm binaries:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV/WithFields),
//   - named loggers for components that live outside a request context,
//   - level configuration and parsing utilities.
//
// Services accept a context and extract the logger from it; the detection
// engine and the lifecycle controller receive a named logger at construction
// because sensor callbacks carry no context.
package logger
