package submission

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/derickschaefer/carprice/internal/model"
)

// ErrSuperseded is returned by Submit when a newer submission replaced the
// call before it resolved. The superseded call never touches the state.
var ErrSuperseded = errors.New("submission superseded by a newer request")

// Predictor is the subset of the prediction service client used by Lifecycle.
type Predictor interface {
	PredictPrice(ctx context.Context, submission model.VehicleSubmission) (*model.PredictionResult, error)
}

// State is the submission state machine.
type State int

const (
	Idle State = iota
	Submitting
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Submitting:
		return "submitting"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// Snapshot is a copy of the lifecycle state.
type Snapshot struct {
	State      State
	Submission *model.VehicleSubmission
	Result     *model.PredictionResult
	Error      string
}

// Lifecycle runs predictions for one page. A new Submit while another is in
// flight cancels the older call and the newest submission wins.
type Lifecycle struct {
	pred Predictor
	log  *slog.Logger

	mu     sync.Mutex
	state  State
	seq    uint64
	cancel context.CancelFunc
	last   *model.VehicleSubmission
	result *model.PredictionResult
	errMsg string
}

// NewLifecycle returns an idle lifecycle. A nil logger falls back to slog.Default.
func NewLifecycle(p Predictor, log *slog.Logger) *Lifecycle {
	if log == nil {
		log = slog.Default()
	}
	return &Lifecycle{pred: p, log: log}
}

// Submit enters the submitting state, clears the previous result and error,
// and requests a prediction for sub. On success the result is stored and
// returned; on failure the error message is stored and the error returned.
// If a newer Submit starts before this one resolves, this call returns
// ErrSuperseded and leaves the state to the newer call.
func (l *Lifecycle) Submit(ctx context.Context, sub model.VehicleSubmission) (*model.PredictionResult, error) {
	ctx, span := otel.Tracer("carprice/submission").Start(ctx, "submission.predict")
	defer span.End()
	span.SetAttributes(
		attribute.String("vehicle.brand", sub.Brand),
		attribute.String("vehicle.model", sub.Model),
		attribute.Int("vehicle.year", sub.Year),
	)

	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	l.seq++
	seq := l.seq
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.state = Submitting
	l.last = &sub
	l.result = nil
	l.errMsg = ""
	l.mu.Unlock()
	defer cancel()

	result, err := l.pred.PredictPrice(ctx, sub)

	l.mu.Lock()
	defer l.mu.Unlock()
	if seq != l.seq {
		l.log.Debug("discarding superseded prediction", "seq", seq)
		span.SetAttributes(attribute.Bool("superseded", true))
		return nil, ErrSuperseded
	}
	l.cancel = nil
	if err != nil {
		l.state = Failed
		l.errMsg = err.Error()
		l.log.Error("prediction failed", "brand", sub.Brand, "model", sub.Model, "err", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	l.state = Succeeded
	l.result = result
	l.log.Info("prediction succeeded", "brand", sub.Brand, "model", sub.Model, "price", result.PredictedPrice)
	return result, nil
}

// Snapshot returns a copy of the current state.
func (l *Lifecycle) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	snap := Snapshot{State: l.state, Error: l.errMsg}
	if l.last != nil {
		s := *l.last
		snap.Submission = &s
	}
	if l.result != nil {
		r := *l.result
		snap.Result = &r
	}
	return snap
}

// Cancel aborts an in-flight submission, if any, without changing the state.
// The cancelled call resolves as a failure unless a newer Submit replaced it.
func (l *Lifecycle) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
	}
}
