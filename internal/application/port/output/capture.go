package output

import "context"

// CapturePort stores diagnostics for a failed step.
type CapturePort interface {
	CaptureFailure(ctx context.Context, page PagePort, step string) (dir string, err error)
}
