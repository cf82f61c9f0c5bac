package interpreter

import "strings"

// branchSuffix is the default branch code appended to 8-character BICs so
// that the short and long forms of the same institution compare equal.
const branchSuffix = "XXX"

// NormalizeBIC right-pads an 8-character BIC to the 11-character form.
// Codes that already carry a branch part and empty strings pass through
// unchanged.
func NormalizeBIC(bic string) string {
	if len(bic) == 8 && !strings.HasSuffix(bic, branchSuffix) {
		return bic + branchSuffix
	}
	return bic
}
