package protocol

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	r, err := Parse("SIGNUP|alice|pw1|Alice")
	require.NoError(t, err)
	assert.Equal(t, "SIGNUP", r.Type)
	assert.Equal(t, []string{"alice", "pw1", "Alice"}, r.Fields)
	assert.Equal(t, "alice", r.Field(0))
	assert.Equal(t, "", r.Field(99))
}

func TestParseNoFields(t *testing.T) {
	r, err := Parse("CANCEL_OK")
	require.NoError(t, err)
	assert.Equal(t, "CANCEL_OK", r.Type)
	assert.Empty(t, r.Fields)
}

func TestParseEmptyRejected(t *testing.T) {
	_, err := Parse("")
	assert.ErrorIs(t, err, ErrEmptyType)

	_, err = Parse("|alice|pw1")
	assert.ErrorIs(t, err, ErrEmptyType)
}

func TestParseStripsTrailingCR(t *testing.T) {
	r, err := Parse("TOKEN|abc123\r")
	require.NoError(t, err)
	assert.Equal(t, "TOKEN", r.Type)
	assert.Equal(t, []string{"abc123"}, r.Fields)
}

func TestFormatRoundTrip(t *testing.T) {
	line := Format("HINT", "0", "river", "2")
	assert.Equal(t, "HINT|0|river|2\n", line)

	r, err := Parse(strings.TrimSuffix(line, "\n"))
	require.NoError(t, err)
	assert.Equal(t, "HINT", r.Type)
	assert.Equal(t, []string{"0", "river", "2"}, r.Fields)
}

func TestFormatNoFields(t *testing.T) {
	assert.Equal(t, "CANCEL_OK\n", Format("CANCEL_OK"))
}

func TestScannerSplitsCoalescedRecords(t *testing.T) {
	input := "SIGNUP_OK|tok1\nLOGIN_OK|tok2\nTOKEN_VALID|Alice\n"
	scanner := NewScanner(strings.NewReader(input))

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	require.Len(t, lines, 3)
	assert.Equal(t, "SIGNUP_OK|tok1", lines[0])
	assert.Equal(t, "LOGIN_OK|tok2", lines[1])
	assert.Equal(t, "TOKEN_VALID|Alice", lines[2])
}

func TestScannerToleratesPartialFinalLine(t *testing.T) {
	// A reader that never sends a final newline still yields the last record
	// once the stream ends, matching bufio.Scanner's default behavior.
	scanner := bufio.NewScanner(strings.NewReader("CHAT|hello"))
	scanner.Split(bufio.ScanLines)
	require.True(t, scanner.Scan())
	assert.Equal(t, "CHAT|hello", scanner.Text())
}
