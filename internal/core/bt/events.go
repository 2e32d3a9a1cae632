package bt

import (
	"fmt"

	"github.com/zeusync/behave/internal/core/binding"
)

type eventHandler struct {
	name    string
	param   binding.Property
	restart bool
}

// FireEvent delivers an event to the running tasks, root first. It must be
// called from the goroutine that ticks this tree, between ticks. Handlers with
// a param store the payload; a restart handler aborts the whole tree so the
// next tick starts again at the root. The result reports whether any handler
// or waiting node consumed the event.
func (tt *TaskTree) FireEvent(name string, payload any) (bool, error) {
	if tt.tree == nil {
		return false, ErrUnbound
	}
	if tt.err != nil {
		return false, tt.err
	}

	var (
		handled, restart bool
		visit            func(i int) error
	)
	visit = func(i int) error {
		t := &tt.arena.tasks[i]
		if !t.live || t.status != StatusRunning {
			return nil
		}
		n := tt.tree.nodes[i]
		for _, h := range n.events {
			if h.name != name {
				continue
			}
			handled = true
			if h.param != nil {
				if err := h.param.Set(tt.agent, payload); err != nil {
					return tt.fatal(n, fmt.Errorf("event %q param: %w", name, err))
				}
			}
			restart = restart || h.restart
		}
		if n.Kind == KindWaitEvent && n.cfg.(*waitEventConfig).event == name {
			t.fired, handled = true, true
		}
		for _, c := range n.Children {
			if err := visit(c); err != nil {
				return err
			}
		}
		return nil
	}

	if err := visit(0); err != nil {
		tt.poison(err)
		return handled, err
	}
	if restart {
		if err := tt.abort(0); err != nil {
			err = tt.fatal(tt.tree.nodes[0], err)
			tt.poison(err)
			return handled, err
		}
		tt.arena.tasks[0].status = StatusInvalid
	}
	return handled, nil
}
