package detection

import "testing"

func TestCompile(t *testing.T) {
	tests := []struct {
		name       string
		rule       Rule
		wantRegexp bool
		wantErr    bool
		keywords   int
	}{
		{"regex", Rule{DetectionType: TypeRegex, Pattern: `secret-\d+`}, true, false, 0},
		{"empty regex", Rule{DetectionType: TypeRegex}, false, true, 0},
		{"invalid regex", Rule{DetectionType: TypeRegex, Pattern: `(unclosed`}, false, true, 0},
		{"keywords lowered, empties dropped", Rule{DetectionType: TypeKeyword, Keywords: []string{"Token", "", "KEY"}}, false, false, 2},
		{"semantic", Rule{DetectionType: TypeSemantic, Pattern: `ignored`}, false, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Compile(tt.rule)
			if (c.Regexp != nil) != tt.wantRegexp {
				t.Errorf("Expected regexp %v, got %v", tt.wantRegexp, c.Regexp)
			}
			if (c.CompileErr != nil) != tt.wantErr {
				t.Errorf("Expected error %v, got %v", tt.wantErr, c.CompileErr)
			}
			if len(c.LowerKeywords) != tt.keywords {
				t.Errorf("Expected %d keywords, got %v", tt.keywords, c.LowerKeywords)
			}
		})
	}
}

func TestCompile_CaseInsensitive(t *testing.T) {
	c := Compile(Rule{DetectionType: TypeRegex, Pattern: `akia[0-9a-z]{4}`})
	if !c.Regexp.MatchString("key=AKIA12AB") {
		t.Error("Expected case-insensitive match")
	}
	k := Compile(Rule{DetectionType: TypeKeyword, Keywords: []string{"PassWord"}})
	if k.LowerKeywords[0] != "password" {
		t.Errorf("Expected lower-cased keyword, got %q", k.LowerKeywords[0])
	}
}

func TestTruncatePattern(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"abcdefghij", 4, "abcd..."},
		{"abc", 0, "abc"},
	}
	for _, tt := range tests {
		if got := TruncatePattern(tt.in, tt.max); got != tt.want {
			t.Errorf("TruncatePattern(%q, %d): expected %q, got %q", tt.in, tt.max, tt.want, got)
		}
	}
}
