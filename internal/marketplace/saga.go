package marketplace

import (
	"context"

	"go.uber.org/zap"
)

// sagaStep pairs a forward action with the compensating action that undoes
// it. Steps with nothing to undo leave undo nil.
type sagaStep struct {
	name string
	do   func(context.Context) error
	undo func(context.Context) error
}

// runSaga executes steps strictly in order. When step k fails, the undo
// actions of steps k-1..1 run in reverse creation order. Every undo runs even
// if an earlier one fails; the first undo failure is surfaced as a
// CompensationError wrapping the original failure, distinguishing a dirty
// failure from a clean one.
func (s *Service) runSaga(ctx context.Context, saga string, steps []sagaStep) error {
	s.metrics.RecordSagaStarted(saga)

	completed := make([]sagaStep, 0, len(steps))
	for _, step := range steps {
		err := step.do(ctx)
		if err == nil {
			completed = append(completed, step)
			continue
		}

		s.logger.Warn("saga step failed, compensating",
			zap.String("saga", saga),
			zap.String("step", step.name),
			zap.Error(err))

		var compensation *CompensationError
		for index := len(completed) - 1; index >= 0; index-- {
			prior := completed[index]
			if prior.undo == nil {
				continue
			}
			undoErr := prior.undo(ctx)
			if undoErr == nil {
				continue
			}
			s.logger.Error("saga rollback step failed, residual state left behind",
				zap.String("saga", saga),
				zap.String("step", prior.name),
				zap.Error(undoErr))
			s.metrics.RecordCompensationFailure(saga, prior.name)
			if compensation == nil {
				compensation = &CompensationError{
					Saga:    saga,
					Step:    prior.name,
					Cause:   err,
					UndoErr: undoErr,
				}
			}
		}

		if compensation != nil {
			return compensation
		}
		s.metrics.RecordSagaCompensated(saga)
		return err
	}

	s.metrics.RecordSagaCommitted(saga)
	return nil
}
