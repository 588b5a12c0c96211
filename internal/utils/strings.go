package utils

/*
 * Compare 2 string arrays to see if they contain the same elements
 * Returns
 * - true if both are the same
 * - left only
 * - right only
 */
func StringArrayEquivalent(a, b []string) (bool, []string, []string) {
	leftOnly := []string{}
	rightOnly := []string{}
	lefts := make(map[string]bool)
	for _, m := range a {
		lefts[m] = true
	}

	rights := make(map[string]bool)
	for _, m := range b {
		rights[m] = true
	}

	result := true

	if len(lefts) != len(rights) {
		result = false
	}

	for r := range rights {
		if _, ok := lefts[r]; !ok {
			leftOnly = append(leftOnly, r)
			result = false
		}
	}
	for l := range lefts {
		if _, ok := rights[l]; !ok {
			rightOnly = append(rightOnly, l)
			result = false
		}
	}
	return result, leftOnly, rightOnly
}

// StringInSlice reports whether s is present in list.
func StringInSlice(s string, list []string) bool {
	for _, l := range list {
		if l == s {
			return true
		}
	}
	return false
}
