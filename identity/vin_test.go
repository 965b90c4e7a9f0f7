package identity

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"clean", "1HGBH41JXMN109186", "1HGBH41JXMN109186", true},
		{"lowercase", "1hgbh41jxmn109186", "1HGBH41JXMN109186", true},
		{"surrounding space", "  1HGBH41JXMN109186\n", "1HGBH41JXMN109186", true},
		{"embedded spaces", "1HGBH41J XMN 109186", "1HGBH41JXMN109186", true},
		{"hyphenated", "1HGBH-41JX-MN109186", "1HGBH41JXMN109186", true},
		{"empty", "", "", false},
		{"too short", "1HGBH41JXMN10918", "", false},
		{"too long", "1HGBH41JXMN1091867", "", false},
		{"contains I", "IHGBH41JXMN109186", "", false},
		{"contains O", "1HGBH41JXMN1O9186", "", false},
		{"contains Q", "1HGBH41JXMN109Q86", "", false},
		{"punctuation", "1HGBH41JXMN10918*", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.in)
			if tt.ok && err != nil {
				t.Fatalf("Normalize(%q) returned error: %v", tt.in, err)
			}
			if !tt.ok && err == nil {
				t.Fatalf("Normalize(%q) = %q, expected ErrInvalidVIN", tt.in, got)
			}
			if got != tt.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestValid(t *testing.T) {
	if !Valid("5YJSA1E26MF123456") {
		t.Fatal("expected valid VIN")
	}
	if Valid("not-a-vin") {
		t.Fatal("expected invalid VIN")
	}
}
