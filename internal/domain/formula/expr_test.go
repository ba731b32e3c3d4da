package formula

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestParseExpr_RoundTrip parses conditions and renders them back unchanged.
func TestParseExpr_RoundTrip(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"Hardware::CPU.intel?",
		"Hardware::CPU.arm? && !Hardware::CPU.is_64_bit?",
		"Hardware::CPU.arm? && Hardware::CPU.is_64_bit?",
		"OS.mac? && Hardware::CPU.intel? || OS.linux?",
		"!(Hardware::CPU.arm? || Hardware::CPU.intel?)",
	}

	for _, in := range inputs {
		e, err := ParseExpr(in)
		require.NoError(t, err, in)
		require.Equal(t, in, e.String())
	}
}

// TestParseExpr_Precedence checks that && binds tighter than ||.
func TestParseExpr_Precedence(t *testing.T) {
	t.Parallel()

	e, err := ParseExpr("OS.linux? || OS.mac? && Hardware::CPU.arm?")
	require.NoError(t, err)

	_, isOr := e.(Or)
	require.True(t, isOr)

	require.True(t, e.Eval(Platform{OS: OSLinux, Arch: ArchIntel, Is64: true}))
	require.False(t, e.Eval(Platform{OS: OSDarwin, Arch: ArchIntel, Is64: true}))
	require.True(t, e.Eval(Platform{OS: OSDarwin, Arch: ArchARM, Is64: true}))
}

// TestParseExpr_KeywordOperators checks that and/or bind looser than && and ||, left to right.
func TestParseExpr_KeywordOperators(t *testing.T) {
	t.Parallel()

	arm32 := Platform{OS: OSLinux, Arch: ArchARM}
	intel64 := Platform{OS: OSLinux, Arch: ArchIntel, Is64: true}

	e, err := ParseExpr("Hardware::CPU.arm? or Hardware::CPU.intel? and Hardware::CPU.is_64_bit?")
	require.NoError(t, err)
	require.False(t, e.Eval(arm32))
	require.True(t, e.Eval(intel64))
	require.Equal(t, "(Hardware::CPU.arm? || Hardware::CPU.intel?) && Hardware::CPU.is_64_bit?", e.String())

	e, err = ParseExpr("not Hardware::CPU.intel? && Hardware::CPU.is_64_bit?")
	require.NoError(t, err)
	require.True(t, e.Eval(arm32))
	require.False(t, e.Eval(intel64))

	e, err = ParseExpr("Hardware::CPU.is_64_bit? and (Hardware::CPU.arm? or Hardware::CPU.intel?)")
	require.NoError(t, err)
	require.False(t, e.Eval(arm32))
	require.True(t, e.Eval(intel64))

	_, err = ParseExpr("Hardware::CPU.arm? and")
	require.Error(t, err)
}

// TestParseExpr_Errors covers unknown terms and malformed input.
func TestParseExpr_Errors(t *testing.T) {
	t.Parallel()

	_, err := ParseExpr("Hardware::CPU.ppc?")
	require.ErrorIs(t, err, ErrUnknownTerm)

	for _, in := range []string{"", "!", "(OS.linux?", "OS.linux? &&", "OS.linux? & OS.mac?", "OS.linux? OS.mac?"} {
		_, err = ParseExpr(in)
		require.Error(t, err, in)
	}
}

// TestAllOfAnyOf checks nil handling of the combinators.
func TestAllOfAnyOf(t *testing.T) {
	t.Parallel()

	require.Nil(t, AllOf())
	require.Nil(t, AnyOf(nil, nil))
	require.Equal(t, Term(TermARM), AllOf(nil, Term(TermARM)))
	require.Equal(t, "Hardware::CPU.arm? && Hardware::CPU.is_64_bit?", AllOf(Term(TermARM), Term(Term64Bit)).String())
	require.Equal(t, "OS.linux? || OS.mac?", AnyOf(Term(TermLinux), Term(TermMac)).String())
}
