package annotate

import (
	"context"
	"fmt"

	"github.com/cyclopcam/logs"

	"github.com/menta2k/embedviz/pkg/client"
	"github.com/menta2k/embedviz/pkg/types"
)

// Annotator drives a Session and forwards committed regions to a Labeler.
type Annotator struct {
	session *Session
	labeler client.Labeler
	log     logs.Log
}

// New creates an Annotator with a fresh session.
func New(labeler client.Labeler, log logs.Log) *Annotator {
	return &Annotator{session: NewSession(), labeler: labeler, log: log}
}

// Session returns the underlying session.
func (a *Annotator) Session() *Session {
	return a.session
}

// Dispatch applies a gesture command to the session.
func (a *Annotator) Dispatch(cmd Command) error {
	return a.session.Dispatch(cmd)
}

// Commit labels the finished rectangle. The region is sent to the backend first and
// only recorded locally once the backend acknowledged it.
func (a *Annotator) Commit(ctx context.Context, label string) (types.LabeledRegion, error) {
	p, err := a.session.BeginCommit(label)
	if err != nil {
		return types.LabeledRegion{}, err
	}

	req := p.Request
	_, sendErr := a.labeler.Label(ctx, req)
	if sendErr != nil {
		sendErr = fmt.Errorf("failed to submit label %q for %s: %w", req.UserClass, req.Filename, sendErr)
		a.log.Warnf("%v", sendErr)
	}

	region, err := a.session.CompleteCommit(p, sendErr)
	if err != nil {
		return types.LabeledRegion{}, err
	}
	a.log.Infof("labeled %s as %q at (%d,%d)-(%d,%d)", req.Filename, req.UserClass, req.X1, req.Y1, req.X2, req.Y2)
	return region, nil
}
