package compose

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateAddress(t *testing.T) {
	require.True(t, ValidateAddress("a@x.com"))
	require.True(t, ValidateAddress("first.last+tag@sub.domain.co"))

	require.False(t, ValidateAddress("bad-address"))
	require.False(t, ValidateAddress("no@tld"))
	require.False(t, ValidateAddress("two@@x.com"))
	require.False(t, ValidateAddress("spaced @x.com"))
}

func TestResolveRecipientsSingle(t *testing.T) {
	got, err := ResolveRecipients("  a@x.com  ", "", false)
	require.NoError(t, err)
	require.Equal(t, []string{"a@x.com"}, got)

	// The bulk field is ignored with bulk mode off.
	got, err = ResolveRecipients("a@x.com", "b@x.com, c@x.com", false)
	require.NoError(t, err)
	require.Equal(t, []string{"a@x.com"}, got)
}

func TestResolveRecipientsBulkSplitsOnAllSeparators(t *testing.T) {
	got, err := ResolveRecipients("", "a@x.com, , b@x.com;c@x.com\n", true)
	require.NoError(t, err)
	require.Equal(t, []string{"a@x.com", "b@x.com", "c@x.com"}, got)
}

func TestResolveRecipientsEmpty(t *testing.T) {
	_, err := ResolveRecipients("   ", "", false)
	require.ErrorIs(t, err, ErrEmptyRecipient)

	_, err = ResolveRecipients("", " ,;\n", true)
	require.ErrorIs(t, err, ErrEmptyRecipient)
}

func TestResolveRecipientsReportsEveryInvalidAddress(t *testing.T) {
	_, err := ResolveRecipients("", "good@x.com, bad-address; also bad", true)
	require.Error(t, err)

	var invalid *InvalidRecipientsError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, []string{"bad-address", "also bad"}, invalid.Addresses)
}
