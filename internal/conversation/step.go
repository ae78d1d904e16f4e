package conversation

import "github.com/ashureev/careerpath/internal/ledger"

// Step is the controller's cursor. Non-negative values address the next
// answer to capture; negative values are terminal phases.
type Step int

const (
	StepName          Step = 0
	StepCountry       Step = 1
	StepReligion      Step = 2
	StepFirstQuestion Step = 3

	StepGenerating Step = -1
	StepDone       Step = -2
	StepViewing    Step = -3
)

// QuestionIndex returns the ledger index addressed by s.
func (s Step) QuestionIndex() (int, bool) {
	i := int(s - StepFirstQuestion)
	if s < StepFirstQuestion || i >= ledger.Len() {
		return 0, false
	}
	return i, true
}

// Phase names the state the step belongs to.
func (s Step) Phase() string {
	switch s {
	case StepName:
		return "collecting_name"
	case StepCountry:
		return "collecting_country"
	case StepReligion:
		return "collecting_religion"
	case StepGenerating:
		return "generating"
	case StepDone:
		return "done"
	case StepViewing:
		return "viewing"
	}
	if _, ok := s.QuestionIndex(); ok {
		return "collecting_profile"
	}
	return "unknown"
}

func (s Step) String() string {
	return s.Phase()
}
