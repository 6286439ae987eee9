package detect

import "testing"

func TestIsLikelyCode(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{
			name: "javascript function",
			text: "function add(a, b) {\n  return a + b;\n}",
			want: true,
		},
		{
			name: "go function",
			text: "func main() {\n\tfmt.Println(\"hi\")\n}",
			want: true,
		},
		{
			name: "python function",
			text: "def fib(n):\n    if n < 2:\n        return n\n    return fib(n-1) + fib(n-2)",
			want: true,
		},
		{
			name: "arrow function one-liner",
			text: "const sum = (a, b) => a + b;",
			want: true,
		},
		{
			name: "plain prose",
			text: "The quick brown fox jumps over the lazy dog. It was a sunny day and everyone went to the park.",
			want: false,
		},
		{
			name: "email prose",
			text: "Please review the attached document and let me know what you think about the proposal.",
			want: false,
		},
		{
			name: "prose with parentheses",
			text: "He said (quite loudly) that the meeting was over and everyone should leave now.",
			want: false,
		},
		{
			name: "too short",
			text: "x = 1",
			want: false,
		},
		{
			name: "empty",
			text: "",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsLikelyCode(tt.text); got != tt.want {
				t.Errorf("IsLikelyCode(%q) = %v (score %d), want %v", tt.text, got, Score(tt.text), tt.want)
			}
		})
	}
}

func TestScorePenalizesProse(t *testing.T) {
	prose := "The system reads the file and then the parser checks it. After that the result is stored."
	if s := Score(prose); s >= scoreThreshold {
		t.Fatalf("prose scored %d, expected below %d", s, scoreThreshold)
	}
}

func TestScoreRewardsStructure(t *testing.T) {
	bare := "result = compute(input)"
	braced := "result = compute(input); if (result) { log(result); }"
	if Score(braced) <= Score(bare) {
		t.Fatalf("structural punctuation should raise the score: %d vs %d", Score(braced), Score(bare))
	}
}
