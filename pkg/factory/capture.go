package factory

import (
	"fmt"

	"github.com/getsentry/sentry-go"
	"github.com/wehubfusion/rackbridge/pkg/jsruntime"
	"go.uber.org/zap"
)

// captureStep records an initialization failure somewhere. A step may
// return an error or panic; neither reaches the caller.
type captureStep struct {
	name string
	fn   func(err error) error
}

// captureFailure runs every capture step for err. Capture is best effort:
// secondary failures are logged at info and swallowed.
func (f *Factory) captureFailure(rt *jsruntime.Runtime, err error) {
	steps := []captureStep{
		{name: "script", fn: rt.Capture},
		{name: "sentry", fn: f.reportToSentry},
	}
	for _, step := range steps {
		f.tryCapture(step, err)
	}
}

func (f *Factory) tryCapture(step captureStep, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			f.logger.Info("failed to capture exception message",
				zap.String("step", step.name),
				zap.Error(fmt.Errorf("panic: %v", rec)))
		}
	}()

	if cerr := step.fn(err); cerr != nil {
		f.logger.Info("failed to capture exception message",
			zap.String("step", step.name),
			zap.Error(cerr))
	}
}

func (f *Factory) reportToSentry(err error) error {
	if f.hub == nil {
		return nil
	}
	f.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", "application_factory")
		scope.SetContext("application", sentry.Context{
			"location": f.location.Label,
		})
		f.hub.CaptureException(err)
	})
	return nil
}
