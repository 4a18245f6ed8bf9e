package domain

// WizardStep is a state of the checkout wizard.
type WizardStep string

const (
	StepProducts     WizardStep = "PRODUCTS"
	StepShippingData WizardStep = "SHIPPING_DATA"
	StepConfirmation WizardStep = "CONFIRMATION"
	StepSuccess      WizardStep = "SUCCESS"
)

var stepTransitions = map[WizardStep][]WizardStep{
	StepProducts:     {StepShippingData},
	StepShippingData: {StepProducts, StepConfirmation},
	StepConfirmation: {StepShippingData, StepSuccess},
	StepSuccess:      {},
}

// CanTransitionTo reports whether the wizard may move from one step to another.
// Steps are never skipped in either direction.
func CanTransitionTo(from, to WizardStep) bool {
	for _, next := range stepTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s WizardStep) IsTerminal() bool {
	return s == StepSuccess
}

// String representation (for logging)
func (s WizardStep) String() string {
	return string(s)
}

// SubmissionStatus tracks one terminal order commit.
type SubmissionStatus int32

const (
	SubmissionIdle SubmissionStatus = iota
	SubmissionSubmitting
	SubmissionSucceeded
	SubmissionFailed
)

var submissionTransitions = map[SubmissionStatus][]SubmissionStatus{
	SubmissionIdle:       {SubmissionSubmitting},
	SubmissionSubmitting: {SubmissionSucceeded, SubmissionFailed},
	SubmissionFailed:     {SubmissionSubmitting},
	SubmissionSucceeded:  {},
}

func CanSubmissionTransition(from, to SubmissionStatus) bool {
	for _, next := range submissionTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s SubmissionStatus) String() string {
	switch s {
	case SubmissionIdle:
		return "IDLE"
	case SubmissionSubmitting:
		return "SUBMITTING"
	case SubmissionSucceeded:
		return "SUCCEEDED"
	case SubmissionFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}
