package cli

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/settingsync/internal/ir"
	"github.com/roach88/settingsync/internal/testutil"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func cfrServer(t *testing.T) *testutil.RemoteServer {
	t.Helper()
	server := testutil.NewRemoteServer(t)
	server.SetMonitor(t, testutil.MonitorEntry{Bucket: "main", Collection: "cfr", LastModified: 20})
	server.SetChangeset(t, "main", "cfr", nil, []ir.Record{
		ir.MustRecord(map[string]any{"id": "b", "last_modified": 20, "weight": 2}),
		ir.MustRecord(map[string]any{"id": "a", "last_modified": 10, "name": "first"}),
	}, 20)
	return server
}

func TestGetCommand_Text(t *testing.T) {
	server := cfrServer(t)

	out, err := execute(t, "get", "--server", server.URL, "--collection", "cfr")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "get_text", []byte(out))
}

func TestGetCommand_JSON(t *testing.T) {
	server := cfrServer(t)

	out, err := execute(t, "--format", "json", "get", "--server", server.URL, "--collection", "cfr")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Bucket     string            `json:"bucket"`
			Collection string            `json:"collection"`
			Records    []json.RawMessage `json:"records"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "main", resp.Data.Bucket)
	assert.Len(t, resp.Data.Records, 2)
}

func TestGetCommand_NoSyncIfEmpty(t *testing.T) {
	server := cfrServer(t)

	out, err := execute(t, "get", "--server", server.URL, "--collection", "cfr", "--sync-if-empty=false")
	require.NoError(t, err)
	assert.Contains(t, out, "main/cfr: 0 record(s)")
	assert.Equal(t, 0, server.Calls("monitor", "changes"))
}

func TestSyncThenInspect_FileStorage(t *testing.T) {
	server := cfrServer(t)
	dir := t.TempDir()
	common := []string{"--server", server.URL, "--collection", "cfr", "--storage", "file", "--storage-path", dir}

	out, err := execute(t, append([]string{"sync"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Synced main/cfr at 20 (2 record(s)")

	out, err = execute(t, append([]string{"--format", "json", "inspect"}, common...)...)
	require.NoError(t, err)

	var resp struct {
		Data InspectResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "main/cfr:collection", resp.Data.Key)
	assert.Equal(t, uint64(20), resp.Data.Timestamp)
	assert.Equal(t, 2, resp.Data.Records)
	assert.False(t, resp.Data.Signed)
	assert.Len(t, resp.Data.Fingerprint, 64)
	assert.NotNil(t, resp.Data.UpdatedAt)

	// Served from storage: the changeset was fetched once.
	_, err = execute(t, append([]string{"get"}, common...)...)
	require.NoError(t, err)
	assert.Equal(t, 1, server.Calls("main", "cfr"))
}

func TestSyncCommand_ExpectedSkipsMonitor(t *testing.T) {
	server := cfrServer(t)

	_, err := execute(t, "sync", "--expected", "20", "--server", server.URL, "--collection", "cfr")
	require.NoError(t, err)

	assert.Equal(t, 0, server.Calls("monitor", "changes"))
	reqs := server.Requests("main", "cfr")
	require.Len(t, reqs, 1)
	assert.Equal(t, "20", reqs[0].Get("_expected"))
}

func TestSyncCommand_UnknownCollection(t *testing.T) {
	server := cfrServer(t)

	out, err := execute(t, "sync", "--server", server.URL, "--collection", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E301]")
	assert.Contains(t, out, "Unknown collection main/nope")
}

func TestInspectCommand_NothingStored(t *testing.T) {
	out, err := execute(t, "inspect", "--collection", "cfr", "--storage", "sqlite",
		"--storage-path", filepath.Join(t.TempDir(), "settings.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
	assert.Contains(t, out, "nothing stored under main/cfr:collection")
}

func TestInspectCommand_SQLiteUpdatedAt(t *testing.T) {
	server := cfrServer(t)
	common := []string{"--server", server.URL, "--collection", "cfr", "--storage", "sqlite",
		"--storage-path", filepath.Join(t.TempDir(), "settings.db")}

	_, err := execute(t, append([]string{"sync"}, common...)...)
	require.NoError(t, err)

	out, err := execute(t, append([]string{"inspect"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Backend:     sqlite")
	assert.Contains(t, out, "Records:     2")
	assert.Contains(t, out, "Updated:")
}

func TestConfigError(t *testing.T) {
	out, err := execute(t, "get")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E201]")
}

func TestVerifyCommand_ContentSignature(t *testing.T) {
	signer := testutil.NewSigner(t)
	server := testutil.NewRemoteServer(t)
	server.SetChain(signer.ChainPEM)

	records := []ir.Record{ir.MustRecord(map[string]any{"id": "a", "last_modified": 10})}
	metadata := signer.SignedMetadata(t, &ir.Collection{Records: records, Timestamp: 10}, server.ChainURL())
	server.SetChangeset(t, "main", "onecrl", metadata, records, 10)

	common := []string{"--server", server.URL, "--collection", "onecrl",
		"--storage", "file", "--storage-path", t.TempDir(),
		"--verifier", "content-signature", "--dns-name", testutil.SignerDNSName}

	_, err := execute(t, append([]string{"sync", "--expected", "10"}, common...)...)
	require.NoError(t, err)

	out, err := execute(t, append([]string{"verify"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ main/onecrl at 10 verified (content-signature)")

	// Pinning another root makes the stored collection untrusted.
	other := testutil.NewSigner(t)
	out, err = execute(t, append([]string{"verify", "--root-hash", hex.EncodeToString(other.RootHash())}, common...)...)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E303]")
}
