package state

// CurrentStep returns the current step, or nil once the instance is finished.
func CurrentStep(s *ExecutionState) *StepRecord {
	if s.Status.IsTerminal() {
		return nil
	}
	if s.CurrentStepIndex < 0 || s.CurrentStepIndex >= len(s.Steps) {
		return nil
	}
	return &s.Steps[s.CurrentStepIndex]
}

// ProgressInfo counts finished steps. Skipped steps count as done.
type ProgressInfo struct {
	Completed int
	Skipped   int
	Total     int
}

// Done returns the number of completed or skipped steps.
func (p ProgressInfo) Done() int {
	return p.Completed + p.Skipped
}

// Fraction returns done/total in [0, 1], or 0 for an empty sequence.
func (p ProgressInfo) Fraction() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Done()) / float64(p.Total)
}

// Percent returns the truncated completion percentage.
func (p ProgressInfo) Percent() int {
	if p.Total == 0 {
		return 0
	}
	return p.Done() * 100 / p.Total
}

// Progress counts the finished steps of s.
func Progress(s *ExecutionState) ProgressInfo {
	p := ProgressInfo{Total: len(s.Steps)}
	for _, step := range s.Steps {
		switch step.Status {
		case StepCompleted:
			p.Completed++
		case StepSkipped:
			p.Skipped++
		}
	}
	return p
}

// ArtifactStatus partitions the tracked artifacts into created and pending,
// preserving sequence order within each group.
func ArtifactStatus(s *ExecutionState) (created, pending []ArtifactRecord) {
	for _, a := range s.Artifacts {
		if a.Status == ArtifactCreated {
			created = append(created, a)
		} else {
			pending = append(pending, a)
		}
	}
	return created, pending
}

// PendingSteps returns the steps that are not yet terminal, in order.
func PendingSteps(s *ExecutionState) []StepRecord {
	var out []StepRecord
	for _, step := range s.Steps {
		if !step.Status.IsTerminal() {
			out = append(out, step)
		}
	}
	return out
}
