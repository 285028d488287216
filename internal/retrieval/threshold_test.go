package retrieval

import "testing"

func TestAdaptiveThreshold(t *testing.T) {
	engine := NewEngine(&stubEmbedder{}, &stubStore{}, Config{
		DefaultK:      5,
		BaseThreshold: 0.7,
		MinThreshold:  0.35,
	})

	tests := []struct {
		name  string
		query string
		want  float64
	}{
		{"generic pattern prefix", "tell me about the book", 0.35},
		{"what-is pattern", "What is Physical AI?", 0.35},
		{"show-me pattern", "show me the chapters on control systems", 0.35},
		{"short query", "robot sensors", 0.35},
		{"mostly generic words", "tell me about what is this about", 0.35},
		{"specific technical query", "compare covariance propagation between EKF and UKF estimators", 0.7},
		{"long specific question", "how does impedance control regulate contact forces during assembly", 0.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.EffectiveThreshold(tt.query)
			if got != tt.want {
				t.Errorf("EffectiveThreshold(%q): got %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestIsGenericQuery_Boundary(t *testing.T) {
	// 19 runes is short, 20 runes with specific wording is not.
	if !isGenericQuery("nineteen rune quer") {
		t.Error("18-rune query should be generic (short)")
	}
	if isGenericQuery("quadruped locomotion gaits") {
		t.Error("26-rune specific query should not be generic")
	}
}
