package window

import (
	"github.com/go-vgo/robotgo"
)

type robotgoBackend struct{}

func (robotgoBackend) processes() ([]Info, error) {
	procs, err := robotgo.Process()
	if err != nil {
		return nil, err
	}
	out := make([]Info, 0, len(procs))
	for _, p := range procs {
		out = append(out, Info{PID: p.Pid, Name: p.Name, Title: robotgo.GetTitle(p.Pid)})
	}
	return out, nil
}

func (robotgoBackend) activate(pid int) error { return robotgo.ActivePid(pid) }

func (robotgoBackend) bounds(pid int) (int, int, int, int) { return robotgo.GetBounds(pid) }

func (robotgoBackend) keyTap(key string) error { return robotgo.KeyTap(key) }
