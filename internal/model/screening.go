package model

// CheckVerdict is the outcome of one screening check
type CheckVerdict string

const (
	CheckPass         CheckVerdict = "PASS"
	CheckFail         CheckVerdict = "FAIL"
	CheckInconclusive CheckVerdict = "INCONCLUSIVE"
	CheckSkipped      CheckVerdict = "SKIPPED"
)

// CheckState tracks a check through the screening state machine
type CheckState string

const (
	CheckPending   CheckState = "PENDING"
	CheckEvaluated CheckState = "EVALUATED"
)

// ScreeningCheck is the recorded result of one check
type ScreeningCheck struct {
	CheckID string       `json:"check_id"`
	State   CheckState   `json:"state"`
	Verdict CheckVerdict `json:"verdict"`
	IsHard  bool         `json:"is_hard"`
	// NeverTolerated checks refer on INCONCLUSIVE even when soft
	NeverTolerated bool                   `json:"never_tolerated,omitempty"`
	Evidence       map[string]interface{} `json:"evidence,omitempty"`
	Reason         string                 `json:"reason"`
}

// ScreeningResult is the ordered outcome of all checks
type ScreeningResult struct {
	Checks []ScreeningCheck `json:"checks"`
}

// Count returns how many checks ended with verdict v
func (r ScreeningResult) Count(v CheckVerdict) int {
	n := 0
	for _, c := range r.Checks {
		if c.Verdict == v {
			n++
		}
	}
	return n
}

// HardFailures returns the hard checks that failed, in order
func (r ScreeningResult) HardFailures() []ScreeningCheck {
	var out []ScreeningCheck
	for _, c := range r.Checks {
		if c.IsHard && c.Verdict == CheckFail {
			out = append(out, c)
		}
	}
	return out
}

// Find returns the check with the given id
func (r ScreeningResult) Find(id string) (ScreeningCheck, bool) {
	for _, c := range r.Checks {
		if c.CheckID == id {
			return c, true
		}
	}
	return ScreeningCheck{}, false
}
