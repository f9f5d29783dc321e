package authflow

// Step identifies a position in the authentication flow.
type Step string

const (
	StepPassword  Step = "password"
	StepBiometric Step = "biometric"
	StepTwoFactor Step = "two_factor"
	StepDone      Step = "done"
	StepLocked    Step = "locked"
	StepIdle      Step = "idle" // no attempt in progress
)

func (s Step) String() string {
	return string(s)
}

// AttemptConfig is the factor snapshot taken at BeginAttempt. Changing the
// enabled factors mid-flow has no effect on the running attempt.
type AttemptConfig struct {
	BiometricEnabled bool
	TwoFactorEnabled bool
}

// stepFlags tracks per-step completion within one attempt.
type stepFlags struct {
	password  bool
	biometric bool
	twoFactor bool
}

// stepOrder is the declared sequence; nextStep walks it rather than
// incrementing an index, so a step completed out of order is never revisited.
var stepOrder = []Step{StepPassword, StepBiometric, StepTwoFactor}

// required reports whether the attempt configuration demands the step.
// Password is always required.
func (c AttemptConfig) required(step Step) bool {
	switch step {
	case StepPassword:
		return true
	case StepBiometric:
		return c.BiometricEnabled
	case StepTwoFactor:
		return c.TwoFactorEnabled
	default:
		return false
	}
}

// done reports whether the flag for the step is set.
func (f stepFlags) done(step Step) bool {
	switch step {
	case StepPassword:
		return f.password
	case StepBiometric:
		return f.biometric
	case StepTwoFactor:
		return f.twoFactor
	default:
		return false
	}
}

// nextStep returns the first required step that has not completed, or
// StepDone when every required step has.
func nextStep(flags stepFlags, cfg AttemptConfig) Step {
	for _, step := range stepOrder {
		if cfg.required(step) && !flags.done(step) {
			return step
		}
	}
	return StepDone
}
