package core

import "testing"

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"(512) 555-0100", "+15125550100", false},
		{"512-555-0100", "+15125550100", false},
		{"15125550100", "+15125550100", false},
		{"+15125550100", "+15125550100", false},
		{"+44 20 7946 0958", "+442079460958", false},
		{"555-0100", "", true},
		{"", "", true},
	}
	for _, tc := range cases {
		got, err := NormalizePhone(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("NormalizePhone(%q): expected error, got %q", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizePhone(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestPhoneVariantsCanonicalFirst(t *testing.T) {
	variants := PhoneVariants("(512) 555-0100")
	if len(variants) == 0 {
		t.Fatal("expected variants")
	}
	if variants[0] != "+15125550100" {
		t.Fatalf("first variant = %q, want canonical", variants[0])
	}

	seen := map[string]bool{}
	for _, v := range variants {
		if seen[v] {
			t.Fatalf("duplicate variant %q", v)
		}
		seen[v] = true
	}
	for _, want := range []string{"+15125550100", "5125550100", "15125550100"} {
		if !seen[want] {
			t.Errorf("missing variant %q in %v", want, variants)
		}
	}
}

func TestPhoneVariantsEmpty(t *testing.T) {
	if got := PhoneVariants("  "); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}
