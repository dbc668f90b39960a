package daemon

import (
	"github.com/jmylchreest/presentd/internal/model"
	"github.com/jmylchreest/presentd/internal/orchestrator"
)

// multiRecorder fans orchestrator events out to several recorders.
type multiRecorder []orchestrator.Recorder

func newMultiRecorder(recorders ...orchestrator.Recorder) multiRecorder {
	var m multiRecorder
	for _, r := range recorders {
		if r != nil {
			m = append(m, r)
		}
	}
	return m
}

func (m multiRecorder) StateChanged(change model.StateChange) {
	for _, r := range m {
		r.StateChanged(change)
	}
}

func (m multiRecorder) RequestDropped(windowID, interfaceName string, err error) {
	for _, r := range m {
		r.RequestDropped(windowID, interfaceName, err)
	}
}
