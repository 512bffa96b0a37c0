package normalize

import "testing"

func TestID(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr error
	}{
		{"acme", "acme", nil},
		{"Acme", "acme", nil},
		{"  acme-data  ", "acme-data", nil},
		{"a1-b2-c3", "a1-b2-c3", nil},
		{"ab", "", ErrIDTooShort},
		{"", "", ErrIDTooShort},
		{"-acme", "", ErrIDBadChars},
		{"acme-", "", ErrIDBadChars},
		{"ac_me", "", ErrIDBadChars},
		{"ac me", "", ErrIDBadChars},
		{"ac--me", "", ErrIDDoubleDash},
	}
	for _, tc := range cases {
		got, err := ID(tc.in)
		if err != tc.wantErr {
			t.Errorf("ID(%q): err = %v, want %v", tc.in, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("ID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	long := make([]byte, MaxIDLength+1)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := ID(string(long)); err != ErrIDTooLong {
		t.Errorf("overlong ID: err = %v, want ErrIDTooLong", err)
	}
}

func TestName(t *testing.T) {
	if _, err := Name("   "); err != ErrNameEmpty {
		t.Errorf("blank name: err = %v, want ErrNameEmpty", err)
	}
	got, err := Name("  Climate Data  ")
	if err != nil || got != "Climate Data" {
		t.Errorf("Name trim: got %q, %v", got, err)
	}
}

func TestFold(t *testing.T) {
	if Fold("Café") != Fold("cafe") {
		t.Error("fold must collapse case and diacritics")
	}
}
