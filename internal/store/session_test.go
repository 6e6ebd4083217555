package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIssueOrGet_IdempotentPerKey(t *testing.T) {
	s := NewSessions()
	first := s.IssueOrGet("sess-a")
	require.NotEmpty(t, first)
	for i := 0; i < 5; i++ {
		require.Equal(t, first, s.IssueOrGet("sess-a"))
	}
	require.Equal(t, 1, s.Count())
}

func TestIssueOrGet_DistinctKeysGetDistinctTokens(t *testing.T) {
	s := NewSessions()
	a := s.IssueOrGet("sess-a")
	b := s.IssueOrGet("sess-b")
	require.NotEqual(t, a, b)
}

func TestIssueOrGet_EmptyKeyUsesDefaultSession(t *testing.T) {
	s := NewSessions()
	anon := s.IssueOrGet("")
	require.Equal(t, anon, s.IssueOrGet(DefaultSessionKey))
}

func TestValidate(t *testing.T) {
	s := NewSessions()
	token := s.IssueOrGet("sess-a")

	require.True(t, s.Validate("sess-a", token))
	require.False(t, s.Validate("sess-a", "wrong"))
	require.False(t, s.Validate("sess-a", ""))
	require.False(t, s.Validate("never-issued", token))
}
