package pathway

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveValueKey(t *testing.T) {
	cases := []struct {
		label string
		want  string
	}{
		{"Yes", "yes"},
		{"More than 15 minutes", "more_than_15_minutes"},
		{"  Chest pain?  ", "chest_pain"},
		{"A--B__C", "a_b_c"},
		{"!!!", ""}, // 完全不可用，退回随机键
	}

	for _, c := range cases {
		got := deriveValueKey(c.label)
		if c.want == "" {
			require.True(t, strings.HasPrefix(got, "opt_"), "标签 %q 应退回随机键, got %q", c.label, got)
			require.Len(t, got, len("opt_")+8)
			continue
		}
		require.Equal(t, c.want, got, "标签 %q", c.label)
	}
}

func TestEnsureUniqueValueKey(t *testing.T) {
	taken := map[string]bool{"yes": true, "yes_2": true}

	require.Equal(t, "no", ensureUniqueValueKey("no", taken))
	require.Equal(t, "yes_3", ensureUniqueValueKey("yes", taken))
}
