package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	roster := []string{"Jane Doe", "John"}

	tests := []struct {
		name      string
		candidate string
		roster    []string
		want      string
		wantErr   bool
	}{
		{name: "exact", candidate: "John", roster: roster, want: "John"},
		{name: "case and whitespace", candidate: "  jOHN ", roster: roster, want: "John"},
		{name: "shortened surname", candidate: "Jane D", roster: roster, want: "Jane Doe"},
		{name: "typo", candidate: "Jhon", roster: roster, want: "John"},
		{name: "nothing close", candidate: "Zzyzx", roster: roster, wantErr: true},
		{name: "empty candidate", candidate: "   ", roster: roster, wantErr: true},
		{name: "empty roster", candidate: "John", roster: nil, wantErr: true},
		{name: "tie prefers substring", candidate: "al", roster: []string{"Ed", "Alex"}, want: "Alex"},
		{name: "tie keeps first", candidate: "Cob", roster: []string{"Bob", "Rob"}, want: "Bob"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.candidate, tt.roster)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoMatchFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScore(t *testing.T) {
	assert.Equal(t, 1.0, Score("John", " john "))
	assert.Equal(t, 1.0, Score("", ""))
	assert.InDelta(t, 0.75, Score("Jane D", "Jane Doe"), 1e-9)
	assert.Equal(t, 0.0, Score("abc", "xyz"))
}

func TestResolverThreshold(t *testing.T) {
	assert.Equal(t, DefaultThreshold, New(0).Threshold())
	assert.Equal(t, DefaultThreshold, New(1.5).Threshold())

	strict := New(0.9)
	_, err := strict.Resolve("Jane D", []string{"Jane Doe"})
	assert.ErrorIs(t, err, ErrNoMatchFound)

	got, err := strict.Resolve("jane doe", []string{"Jane Doe"})
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", got)
}
