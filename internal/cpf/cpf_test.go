package cpf

import "testing"

func TestIsValid_KnownGood(t *testing.T) {
	for _, s := range []string{
		"52998224725",
		"529.982.247-25",
		"111.444.777-35",
		"11144477735",
	} {
		if !IsValid(s) {
			t.Fatalf("IsValid(%q) = false, want true", s)
		}
	}
}

func TestIsValid_SingleDigitMutation(t *testing.T) {
	// Flip each digit of a valid CPF in turn; every mutation must fail.
	const valid = "52998224725"
	for i := 0; i < len(valid); i++ {
		b := []byte(valid)
		b[i] = '0' + byte((int(b[i]-'0')+1)%10)
		if IsValid(string(b)) {
			t.Fatalf("mutation at position %d (%s) unexpectedly valid", i, b)
		}
	}
}

func TestIsValid_RepeatedDigits(t *testing.T) {
	for d := byte('0'); d <= '9'; d++ {
		s := string([]byte{d, d, d, d, d, d, d, d, d, d, d})
		if IsValid(s) {
			t.Fatalf("repeated-digit CPF %q unexpectedly valid", s)
		}
	}
}

func TestDigits(t *testing.T) {
	cases := map[string]string{
		"529.982.247-25": "52998224725",
		"52998224725":    "52998224725",
		" 111.444.777-35 ": "11144477735",
		"abc": "",
	}
	for in, want := range cases {
		if got := Digits(in); got != want {
			t.Fatalf("Digits(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsValid_Malformed(t *testing.T) {
	for _, s := range []string{
		"",
		"1234567890",    // 10 digits
		"123456789012",  // 12 digits
		"abc.def.ghi-jk", // no digits at all
		"529982247",     // truncated
	} {
		if IsValid(s) {
			t.Fatalf("IsValid(%q) = true, want false", s)
		}
	}
}
