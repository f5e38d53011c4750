package crd

import "github.com/go-playground/validator/v10"

var validate = validator.New(validator.WithRequiredStructEnabled())

var (
	// Compile time checks for the collaborator interfaces.
	_ Merger           = (*RunAggregate)(nil)
	_ HitRecorder      = (*EventBuffer)(nil)
	_ HitRecorder      = (*Worker)(nil)
	_ GeometryProvider = (*BoxGeometry)(nil)
	_ StepSource       = (*UniformSource)(nil)
	_ StepSource       = StepSourceFunc(nil)
	_ ResultSink       = (*CSVSink)(nil)
	_ ResultSink       = (*SQLiteSink)(nil)
	_ ResultSink       = MultiSink(nil)
	_ Observer         = (*RecordingObserver)(nil)
	_ Observer         = LogObserver{}
	_ Observer         = ObserverFunc(nil)
	_ Observer         = Observers(nil)
)
