package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"lukechampine.com/blake3"

	"memchain/core"
	"memchain/core/state"
	"memchain/indexer"
	"memchain/native/agentmemory"
	"memchain/rpc"
	"memchain/storage"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func startNode(t *testing.T) string {
	t.Helper()
	index, err := indexer.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })
	node := core.NewNode(state.NewLedger(storage.NewMemDB()), core.Options{
		EnableAirdrop:      true,
		AirdropMaxLamports: 10_000_000_000,
		Index:              index,
	})
	srv := httptest.NewServer(rpc.NewServer(node, index, rpc.Options{}).Handler())
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestMemoryLifecycle(t *testing.T) {
	endpoint := startNode(t)
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "key.json")
	global := []string{"--rpc", endpoint, "--key", keyFile}
	do := func(args ...string) string {
		t.Helper()
		out, err := run(t, append(args, global...)...)
		require.NoError(t, err, out)
		return out
	}

	var created map[string]string
	require.NoError(t, json.Unmarshal([]byte(do("keys", "new")), &created))
	owner, err := solana.PublicKeyFromBase58(created["publicKey"])
	require.NoError(t, err)
	require.Equal(t, owner.String()+"\n", do("keys", "show"))

	_, err = run(t, append([]string{"keys", "new"}, global...)...)
	require.ErrorContains(t, err, "already exists")

	do("airdrop", "5000000000")
	do("config", "init")

	agent := solana.PublicKey{42}
	do("vault", "init", agent.String())
	vault, _ := agentmemory.VaultAddress(owner, agent)

	content := []byte("the user prefers dark mode")
	contentFile := filepath.Join(dir, "prefs.txt")
	require.NoError(t, os.WriteFile(contentFile, content, 0o600))
	do("memory", "create", "prefs", "--vault", vault.String(), "--file", contentFile, "--type", "preference", "--tags", "1,2")

	var shard rpc.MemoryResult
	require.NoError(t, json.Unmarshal([]byte(do("memory", "show", "prefs", "--vault", vault.String())), &shard))
	sum := blake3.Sum256(content)
	require.Equal(t, hex.EncodeToString(sum[:]), shard.ContentHash)
	require.EqualValues(t, len(content), shard.ContentSize)
	require.Equal(t, "preference", shard.Metadata.MemoryType)
	require.Equal(t, []int{1, 2, 0, 0, 0, 0, 0, 0}, shard.Metadata.Tags)

	do("memory", "delete", "prefs", "--vault", vault.String())
	out, err := run(t, append([]string{"memory", "update", "prefs", "--vault", vault.String(), "--file", contentFile}, global...)...)
	require.ErrorContains(t, err, "failed", out)

	var v rpc.VaultResult
	require.NoError(t, json.Unmarshal([]byte(do("vault", "show", owner.String(), agent.String())), &v))
	require.Zero(t, v.MemoryCount)

	var evts []rpc.EventResult
	require.NoError(t, json.Unmarshal([]byte(do("events", "--vault", vault.String())), &evts))
	require.Len(t, evts, 3)
	require.Equal(t, agentmemory.EventTypeMemoryDeleted, evts[2].Type)
}

func TestPDACommands(t *testing.T) {
	owner, agent := solana.PublicKey{1}, solana.PublicKey{2}
	out, err := run(t, "pda", "vault", owner.String(), agent.String())
	require.NoError(t, err)
	var got derivedAddress
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	addr, bump := agentmemory.VaultAddress(owner, agent)
	require.Equal(t, derivedAddress{Address: addr.String(), Bump: bump}, got)

	out, err = run(t, "pda", "memory", addr.String(), "notes")
	require.NoError(t, err)
	shard, _ := agentmemory.MemoryAddress(addr, "notes")
	require.Contains(t, out, shard.String())

	_, err = run(t, "pda", "vault", "nope", agent.String())
	require.ErrorContains(t, err, "owner")
	_, err = run(t, "pda", "profile")
	require.Error(t, err)
}

func TestHashCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o600))
	out, err := run(t, "hash", path)
	require.NoError(t, err)
	var got struct {
		ContentHash string `json:"contentHash"`
		ContentSize uint32 `json:"contentSize"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	sum := blake3.Sum256([]byte("abc"))
	require.Equal(t, hex.EncodeToString(sum[:]), got.ContentHash)
	require.EqualValues(t, 3, got.ContentSize)
}

func TestContentFlags(t *testing.T) {
	f := contentFlags{memoryType: "task", hash: hex.EncodeToString(make([]byte, 32)), size: 9, tags: "3", cid: "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"}
	in, err := f.input("k")
	require.NoError(t, err)
	require.Equal(t, agentmemory.MemoryTypeTask, in.Metadata.MemoryType)
	require.EqualValues(t, 9, in.ContentSize)
	require.EqualValues(t, 3, in.Metadata.Tags[0])
	require.NotNil(t, in.Metadata.IPFSCID)

	f.file = "x"
	_, err = f.input("k")
	require.ErrorContains(t, err, "mutually exclusive")

	_, err = (&contentFlags{memoryType: "task"}).input("k")
	require.ErrorContains(t, err, "required")
	_, err = (&contentFlags{memoryType: "dream", hash: f.hash}).input("k")
	require.Error(t, err)

	_, err = parseTags("1,2,3,4,5,6,7,8,9")
	require.Error(t, err)
	_, err = parseTags("300")
	require.Error(t, err)

	_, err = parseHash("abcd")
	require.Error(t, err)

	perm, err := parsePermission("Write")
	require.NoError(t, err)
	require.Equal(t, agentmemory.PermissionWrite, perm)
	_, err = parsePermission("none")
	require.Error(t, err)
}
