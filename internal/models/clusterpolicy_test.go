package models

import "testing"

func TestResolveEnabled(t *testing.T) {
	tests := []struct {
		name    string
		raw     interface{}
		present bool
		want    bool
		wantErr bool
	}{
		{"absent defaults true", nil, false, true, false},
		{"explicit nil defaults true", nil, true, true, false},
		{"literal false is honored", false, true, false, false},
		{"literal true", true, true, true, false},
		{"string false", "false", true, false, false},
		{"string true", "true", true, true, false},
		{"string 0", "0", true, false, false},
		{"garbage string", "maybe", true, false, true},
		{"wrong type", 3.14, true, false, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveEnabled(tc.raw, tc.present)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr = %v", err, tc.wantErr)
			}
			if err == nil && got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}
