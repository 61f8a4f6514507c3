package llm

import (
	"context"
	"fmt"
	"sync"
)

// ScriptedUnit replays queued replies per stage, in order. Tests use it to
// drive the workflow through exact reasoning-unit behavior, including
// malformed output and backend errors.
type ScriptedUnit struct {
	mu      sync.Mutex
	replies map[string][]ScriptedReply
	calls   []Request
}

type ScriptedReply struct {
	Reply Reply
	Err   error
}

func NewScriptedUnit() *ScriptedUnit {
	return &ScriptedUnit{replies: map[string][]ScriptedReply{}}
}

// Queue appends a reply for the named stage.
func (u *ScriptedUnit) Queue(stage string, r Reply) *ScriptedUnit {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.replies[stage] = append(u.replies[stage], ScriptedReply{Reply: r})
	return u
}

// QueueErr appends an error reply for the named stage.
func (u *ScriptedUnit) QueueErr(stage string, err error) *ScriptedUnit {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.replies[stage] = append(u.replies[stage], ScriptedReply{Err: err})
	return u
}

func (u *ScriptedUnit) Invoke(ctx context.Context, req Request) (Reply, error) {
	if err := ctx.Err(); err != nil {
		return Reply{}, err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls = append(u.calls, req)
	q := u.replies[req.Stage]
	if len(q) == 0 {
		return Reply{}, fmt.Errorf("scripted unit: no reply queued for stage %q", req.Stage)
	}
	head := q[0]
	u.replies[req.Stage] = q[1:]
	return head.Reply, head.Err
}

// Calls returns the requests seen so far, in invocation order.
func (u *ScriptedUnit) Calls() []Request {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]Request{}, u.calls...)
}
