package pipeline

import "fmt"

// Summary is the end-of-batch report for one pipeline pass. It is the only
// operator-visible surface besides the logs.
type Summary struct {
	RunID            string
	Payees           int
	Documents        int
	Reversals        int
	Forwarded        int
	AlreadyProcessed int
	Stored           int
	Skipped          int
	Failed           int
}

func (s Summary) String() string {
	return fmt.Sprintf(
		"documents=%d reversals=%d forwarded=%d already_processed=%d stored=%d skipped=%d failed=%d",
		s.Documents, s.Reversals, s.Forwarded, s.AlreadyProcessed, s.Stored, s.Skipped, s.Failed)
}
