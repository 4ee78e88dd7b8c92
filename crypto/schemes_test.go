package crypto_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drand/vmauth/crypto"
)

func TestNamesInList(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{"", false},
		{crypto.DefaultSchemeID, true},
		{crypto.MainnetSchemeID, true},
		{"nonexistentschemename", false},
	}

	for _, tt := range tests {
		t.Run(tt.name+"IsInList", func(t *testing.T) {
			for _, v := range crypto.ListSchemes() {
				if tt.name == v {
					require.True(t, tt.expected)
					return
				}
			}
			require.False(t, tt.expected)
		})
	}
}

func TestSchemeFromName(t *testing.T) {
	sch, err := crypto.GetSchemeByIDWithDefault("")
	require.NoError(t, err)
	require.Equal(t, crypto.DefaultSchemeID, sch.Name)

	main, err := crypto.SchemeFromName(crypto.MainnetSchemeID)
	require.NoError(t, err)
	require.NotEqual(t, sch.NetworkID, main.NetworkID)
	require.False(t, sch.SerialNumberDomain.Equal(&main.SerialNumberDomain))

	_, err = crypto.SchemeFromName("nope")
	require.Error(t, err)
}

func BenchmarkHashToGroup(b *testing.B) {
	sch := crypto.NewTestnetScheme()
	in := crypto.FieldFromUint64(42)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := sch.HashToGroup(in)
		require.NoError(b, err)
	}
}
