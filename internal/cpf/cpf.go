// Package cpf validates Brazilian CPF tax identifiers using the official
// weighted mod-11 checksum. It is a pure function with no I/O, used as a
// request-validation gate before a contribution is persisted.
package cpf

// Digits strips formatting punctuation from a CPF, returning only the
// digit characters. Used when the bare number must be sent to the payment
// gateway regardless of how the guest typed it.
func Digits(s string) string {
	out := make([]byte, 0, 11)
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			out = append(out, s[i])
		}
	}
	return string(out)
}

// IsValid reports whether s is a well-formed CPF. Formatting punctuation
// ("123.456.789-09") is stripped before validation. The function never
// panics and never returns an error; malformed input is simply invalid.
//
// Rules:
//   - exactly 11 digits after stripping non-digit characters;
//   - sequences of a single repeated digit (e.g. "11111111111") are
//     rejected even though their checksum happens to verify;
//   - both check digits must match the weighted mod-11 algorithm
//     (weights 10..2 over digits 1-9, then 11..2 over digits 1-10;
//     a remainder of 10 or 11 maps to check digit 0).
func IsValid(s string) bool {
	digits := make([]int, 0, 11)
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits = append(digits, int(r-'0'))
		}
	}
	if len(digits) != 11 {
		return false
	}

	allSame := true
	for _, d := range digits[1:] {
		if d != digits[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return false
	}

	if checkDigit(digits[:9], 10) != digits[9] {
		return false
	}
	return checkDigit(digits[:10], 11) == digits[10]
}

// checkDigit computes a CPF verification digit over ds with descending
// weights starting at firstWeight. Remainders of 10 and 11 map to 0.
func checkDigit(ds []int, firstWeight int) int {
	sum := 0
	for i, d := range ds {
		sum += d * (firstWeight - i)
	}
	d := 11 - sum%11
	if d >= 10 {
		return 0
	}
	return d
}
