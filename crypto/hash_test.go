package crypto

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func fields(vals ...uint64) []Field {
	out := make([]Field, len(vals))
	for i, v := range vals {
		out[i] = FieldFromUint64(v)
	}
	return out
}

func TestHashDomainSeparation(t *testing.T) {
	sch := NewTestnetScheme()
	in := fields(1, 2)

	h2, err := sch.Hash2(in...)
	require.NoError(t, err)
	h2bis, err := sch.Hash2(in...)
	require.NoError(t, err)
	require.True(t, h2.Equal(&h2bis))

	h4, err := sch.Hash4(in...)
	require.NoError(t, err)
	h8, err := sch.Hash8(in...)
	require.NoError(t, err)
	require.False(t, h2.Equal(&h4))
	require.False(t, h4.Equal(&h8))

	// trailing zero changes the digest
	h2zero, err := sch.Hash2(fields(1, 2, 0)...)
	require.NoError(t, err)
	require.False(t, h2.Equal(&h2zero))

	main := NewMainnetScheme()
	hm, err := main.Hash2(in...)
	require.NoError(t, err)
	require.False(t, h2.Equal(&hm))
}

func TestHashToScalar(t *testing.T) {
	sch := NewTestnetScheme()
	s1, err := sch.HashToScalar(fields(5, 6)...)
	require.NoError(t, err)
	s2, err := sch.HashToScalar(fields(5, 6)...)
	require.NoError(t, err)
	require.True(t, s1.Equal(s2))

	s3, err := sch.HashToScalar(fields(6, 5)...)
	require.NoError(t, err)
	require.False(t, s1.Equal(s3))
}

func TestHashToGroup(t *testing.T) {
	sch := NewTestnetScheme()
	seen := make(map[string]bool)
	for i := uint64(0); i < 16; i++ {
		p, err := sch.HashToGroup(fields(i, 99)...)
		require.NoError(t, err)
		require.False(t, IsIdentity(p))

		// the point decodes, hence it lies in the prime order subgroup
		buff, err := p.MarshalBinary()
		require.NoError(t, err)
		require.NoError(t, sch.Group.Point().UnmarshalBinary(buff))

		again, err := sch.HashToGroup(fields(i, 99)...)
		require.NoError(t, err)
		require.True(t, p.Equal(again))

		require.False(t, seen[p.String()])
		seen[p.String()] = true
	}
}

func TestHashMany(t *testing.T) {
	sch := NewTestnetScheme()
	out, err := sch.HashMany(fields(1), 4)
	require.NoError(t, err)
	require.Len(t, out, 4)
	for i := 1; i < len(out); i++ {
		require.False(t, out[0].Equal(&out[i]))
	}
}

func TestCommit(t *testing.T) {
	sch := NewTestnetScheme()
	r1 := sch.Group.Scalar().SetInt64(11)
	r2 := sch.Group.Scalar().SetInt64(12)
	c1, err := sch.Commit(fields(1, 2, 3), r1)
	require.NoError(t, err)
	c1bis, err := sch.Commit(fields(1, 2, 3), r1)
	require.NoError(t, err)
	require.True(t, c1.Equal(&c1bis))

	c2, err := sch.Commit(fields(1, 2, 3), r2)
	require.NoError(t, err)
	require.False(t, c1.Equal(&c2))

	c3, err := sch.Commit(fields(1, 2, 4), r1)
	require.NoError(t, err)
	require.False(t, c1.Equal(&c3))
}

func TestSampleField(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	a, err := SampleField(rng)
	require.NoError(t, err)
	b, err := SampleField(rng)
	require.NoError(t, err)
	require.False(t, a.Equal(&b))
}

func TestFieldEncoding(t *testing.T) {
	f := FieldFromUint64(123456789)
	s := FieldToString(&f)
	back, err := StringToField(s)
	require.NoError(t, err)
	require.True(t, f.Equal(&back))

	_, err = StringToField("ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")
	require.ErrorIs(t, err, ErrNonCanonicalField)
	_, err = StringToField("00")
	require.ErrorIs(t, err, ErrNonCanonicalField)
}
