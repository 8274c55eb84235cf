package logger

import "log/slog"

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// SubjectID records the workspace under enforcement under the key "subject_id".
func SubjectID(id string) slog.Attr {
	return slog.String("subject_id", id)
}

// Resource records the metered resource name under the key "resource".
func Resource(name string) slog.Attr {
	return slog.String("resource", name)
}

// PlanID records a plan identifier under the key "plan_id".
func PlanID(id string) slog.Attr {
	return slog.String("plan_id", id)
}

// RequestID records the request identifier under the key "request_id".
func RequestID(id string) slog.Attr {
	return slog.String("request_id", id)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}
