// Package gemini provides an in-process analysis backend that uses Google's
// Gemini API instead of a remote agents service.
//
// The backend renders a prompt for the task type from an embedded template,
// asks the model for a JSON object and decodes it the same way a remote
// service's result document is decoded, so the dispatcher cannot tell the
// two apart. Every call is synchronous; there is never a remote job to
// cancel.
//
// Errors follow the service error taxonomy: client and transport failures
// are reported as domain.ErrServiceUnavailable and retried by the caller,
// while blocked or unparseable output is domain.ErrServiceRejected.
package gemini
