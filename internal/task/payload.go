package task

import (
	"context"
	"errors"
	"fmt"

	"github.com/kaushalacts/research-ai-platform/internal/domain"
)

// ErrPayload marks a task whose request payload cannot be assembled, for
// example because a target paper no longer exists. It is never retried.
var ErrPayload = errors.New("task payload cannot be built")

// buildPayload assembles the request body for the task's endpoint. Paper
// analysis describes its single paper; project-wide tasks carry a snapshot
// of their targets, or of every project paper when no targets were given.
func (d *Dispatcher) buildPayload(ctx context.Context, task *domain.AnalysisTask) (any, error) {
	var cb domain.Callback
	if d.callbacks != nil {
		url, token, err := d.callbacks.CallbackFor(task.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: callback token: %w", ErrPayload, err)
		}
		cb = domain.Callback{CallbackURL: url, CallbackToken: token}
	}

	if paperID, ok := task.PaperID(); ok {
		paper, err := d.papers.Get(ctx, paperID)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPayload, err)
		}
		snap := paper.Snapshot()
		return &domain.PaperAnalysisRequest{
			TaskID:  task.ID.String(),
			PaperID: snap.ID,
			PaperData: domain.PaperData{
				Title:    snap.Title,
				Abstract: snap.Abstract,
				Authors:  snap.Authors,
				DOI:      snap.DOI,
			},
			Parameters: task.Parameters,
			Callback:   cb,
		}, nil
	}

	var (
		papers []*domain.Paper
		err    error
	)
	if len(task.TargetIDs) > 0 {
		papers, err = d.papers.GetMany(ctx, task.TargetIDs)
	} else {
		papers, err = d.papers.ListByProject(ctx, task.ProjectID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPayload, err)
	}

	snapshots := make([]domain.PaperSnapshot, 0, len(papers))
	for _, p := range papers {
		snapshots = append(snapshots, p.Snapshot())
	}

	return &domain.AggregateRequest{
		TaskID:     task.ID.String(),
		ProjectID:  task.ProjectID.String(),
		Parameters: task.Parameters,
		Papers:     snapshots,
		Callback:   cb,
	}, nil
}
