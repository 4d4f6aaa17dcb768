package download

// fanoutUI forwards every task call to each sink in order.
type fanoutUI struct {
	sinks []TaskUI
}

// MultiUI combines several task surfaces into one. Nil sinks are
// skipped, so optional surfaces can be wired unconditionally.
func MultiUI(sinks ...TaskUI) TaskUI {
	kept := make([]TaskUI, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &fanoutUI{sinks: kept}
}

func (f *fanoutUI) BeginTask(taskID string, track Track, filename string, meta TaskMeta) {
	for _, s := range f.sinks {
		s.BeginTask(taskID, track, filename, meta)
	}
}

func (f *fanoutUI) UpdatePhase(taskID string, phase Phase, fraction float64) {
	for _, s := range f.sinks {
		s.UpdatePhase(taskID, phase, fraction)
	}
}

func (f *fanoutUI) UpdateProgress(taskID string, overall float64) {
	for _, s := range f.sinks {
		s.UpdateProgress(taskID, overall)
	}
}

func (f *fanoutUI) CompleteTask(taskID string) {
	for _, s := range f.sinks {
		s.CompleteTask(taskID)
	}
}

func (f *fanoutUI) ErrorTask(taskID string, message string) {
	for _, s := range f.sinks {
		s.ErrorTask(taskID, message)
	}
}

func (f *fanoutUI) CancelTask(taskID string) {
	for _, s := range f.sinks {
		s.CancelTask(taskID)
	}
}
