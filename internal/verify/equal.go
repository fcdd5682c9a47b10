package verify

// ConstantTimeEqual reports whether a and b are identical. Only a length
// mismatch returns early; otherwise every byte is compared.
func ConstantTimeEqual(a, b string) bool {
	equal, _ := compare(a, b)
	return equal
}

// compare is ConstantTimeEqual that also reports how many byte positions it visited.
func compare(a, b string) (bool, int) {
	if len(a) != len(b) {
		return false, 0
	}
	var diff byte
	visited := 0
	for i := 0; i < len(a); i++ {
		diff |= a[i] ^ b[i]
		visited++
	}
	return diff == 0, visited
}
