// Package logger provides a thin factory around Go's slog package with
// functional options, helper attribute constructors, and transparent
// injection of values stored in context.Context.
//
// New builds a *slog.Logger configured by Option functions: output format
// (json or text), minimum level, static attributes such as the service
// name, and ContextExtractor callbacks that pull request-scoped attributes
// out of the context on every log call.
//
// Helper constructors in attr.go (Error, SubjectID, Resource, PlanID)
// keep attribute naming consistent across the enforcement pipeline.
//
// # Usage
//
//	log := logger.New(
//	    logger.WithService("quota-api"),
//	    logger.WithLevel(slog.LevelDebug),
//	)
//	logger.SetAsDefault(log)
//
//	log.InfoContext(ctx, "usage recorded",
//	    logger.SubjectID(subjectID),
//	    logger.Resource("transcriptions"),
//	)
package logger
