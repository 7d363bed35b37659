package scenario

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bankingScenario = `name: Balance Inquiry
description: Authenticate then check balances.
session: cust-123
tags: [banking]
turns:
  - input: "My email is a@b.com and SSN last 4 is 1234"
    expected:
      tool_called: ["authenticate_customer"]
      authenticated: true
  - input: "show my balances"
    expected:
      message_contains: ["balance"]
      max_tool_calls: 2
`

func writeScenario(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	sc, err := Load(writeScenario(t, "balance.yaml", bankingScenario))
	require.NoError(t, err)

	assert.Equal(t, "Balance Inquiry", sc.Name)
	assert.Equal(t, "cust-123", sc.SessionID())
	require.Len(t, sc.Turns, 2)
	assert.Equal(t, []string{"authenticate_customer"}, sc.Turns[0].Expected.ToolCalled)
	require.NotNil(t, sc.Turns[0].Expected.Authenticated)
	assert.True(t, *sc.Turns[0].Expected.Authenticated)
	require.NotNil(t, sc.Turns[1].Expected.MaxToolCalls)
	assert.Equal(t, 2, *sc.Turns[1].Expected.MaxToolCalls)
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	_, err := Load(writeScenario(t, "typo.yaml", `name: Typo
description: d
turns:
  - input: "hi"
    expectation:
      message_contains: ["x"]
`))
	assert.Error(t, err)
}

func TestLoad_RequiresTurns(t *testing.T) {
	_, err := Load(writeScenario(t, "empty.yaml", "name: Empty\ndescription: d\n"))
	assert.ErrorContains(t, err, "turns")
}

func TestScenario_SessionIDDefaultsToSanitizedName(t *testing.T) {
	sc := &Scenario{Name: "Fraud Dispute #2", Turns: []Turn{{Input: "hi"}}}
	assert.Equal(t, "fraud-dispute--2", sc.SessionID())
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte(bankingScenario), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yml"), []byte(`name: Greeting
description: d
turns:
  - input: "hello"
`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0o600))

	scs, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, scs, 2)
	assert.Equal(t, "Greeting", scs[0].Name)
	assert.Equal(t, "Balance Inquiry", scs[1].Name)
}

func TestExpectation_Empty(t *testing.T) {
	assert.True(t, Expectation{}.Empty())
	auth := true
	assert.False(t, Expectation{Authenticated: &auth}.Empty())
}
