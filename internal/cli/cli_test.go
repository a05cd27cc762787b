package cli

import (
	"bytes"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"mailfetch/internal/config"
	"mailfetch/internal/email"

	"github.com/emersion/go-imap/backend/memory"
	"github.com/emersion/go-imap/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/nettest"
	"gopkg.in/yaml.v3"
)

var sampleRecords = []email.Record{
	{
		ID:      "f455afa7-5c8",
		Date:    "Mon, 1 Jan 2024 10:00:00 +0000",
		From:    "alice@example.com",
		To:      "bob@example.com",
		Subject: "Hello",
		Body:    "Hi <Bob>\nsee you",
		Read:    true,
	},
}

// useLocalServer points the environment at an in-memory IMAP server whose
// INBOX holds one sample message.
func useLocalServer(t *testing.T) {
	t.Helper()

	srv := server.New(memory.New())
	srv.AllowInsecureAuth = true

	listener, err := nettest.NewLocalListener("tcp")
	require.NoError(t, err)

	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = srv.Serve(listener)
	}()
	t.Cleanup(func() {
		assert.NoError(t, srv.Close())
		wg.Wait()
	})

	host, port, err := net.SplitHostPort(listener.Addr().String())
	require.NoError(t, err)

	t.Setenv(config.DirEnv, t.TempDir())
	t.Setenv("MAILFETCH_IMAP_HOST", host)
	t.Setenv("MAILFETCH_IMAP_PORT", port)
	t.Setenv("MAILFETCH_IMAP_TLS", "false")
	t.Setenv("MAILFETCH_AUTH_USERNAME", "username")
	t.Setenv(passwordEnv, "password")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestPrintRecordsJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printRecords(&buf, sampleRecords, outputJSON))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "f455afa7-5c8", decoded[0]["id"])
	assert.Equal(t, true, decoded[0]["read"])
	assert.Contains(t, buf.String(), "Hi <Bob>", "HTML characters stay unescaped")
}

func TestPrintRecordsYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printRecords(&buf, sampleRecords, outputYAML))

	var decoded []email.Record
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, sampleRecords, decoded)
}

func TestPrintRecordsTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printRecords(&buf, sampleRecords, outputTable))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "f455afa7-5c8")
	assert.Contains(t, lines[1], "Hello")
}

func TestPrintRecordsEmptyJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printRecords(&buf, []email.Record{}, outputJSON))
	assert.Equal(t, "[]\n", buf.String())
}

func TestValidateOutput(t *testing.T) {
	assert.NoError(t, validateOutput("table"))
	assert.Error(t, validateOutput("csv"))
}

func TestFetchOptionsPrecedence(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Fetch.Mailbox = "Archive"
	cfg.Fetch.OnlyUnread = true
	cfg.Fetch.Limit = 10

	cmd := newFetchCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--limit", "3", "--best-effort"}))

	var flags fetchFlags
	flags.limit, _ = cmd.Flags().GetInt("limit")
	flags.bestEffort, _ = cmd.Flags().GetBool("best-effort")

	opts, err := fetchOptions(cmd, cfg, flags)
	require.NoError(t, err)
	assert.Equal(t, "Archive", opts.Mailbox)
	assert.True(t, opts.Filter.OnlyUnread)
	assert.Equal(t, 3, opts.Filter.Limit)
	assert.True(t, opts.BestEffort)
}

func TestFetchOptionsRejectsNegativeLimit(t *testing.T) {
	cmd := newFetchCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--limit", "-1"}))

	_, err := fetchOptions(cmd, config.DefaultConfig(), fetchFlags{limit: -1})
	assert.Error(t, err)
}

func TestInboxCommand(t *testing.T) {
	useLocalServer(t)
	t.Setenv("MAILFETCH_FETCH_MAILBOX", "Elsewhere")

	out, err := run(t, "inbox", "--output", "json")
	require.NoError(t, err)

	var records []email.Record
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "A little message, just for you", records[0].Subject)
	assert.Equal(t, "contact@example.org", records[0].From)
	assert.Equal(t, "0562e8e0-0a1", records[0].ID)
}

func TestFetchCommandErrors(t *testing.T) {
	useLocalServer(t)

	_, err := run(t, "fetch", "--mailbox", "Missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retrieve mail")

	_, err = run(t, "fetch", "--output", "csv")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestStatusAndMailboxesCommands(t *testing.T) {
	useLocalServer(t)

	out, err := run(t, "status")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "INBOX: 1 messages"), out)

	out, err = run(t, "mailboxes", "list")
	require.NoError(t, err)
	assert.Equal(t, "INBOX\n", out)
}

func TestConfigShowRedactsPassword(t *testing.T) {
	useLocalServer(t)

	out, err := run(t, "config", "show", "--log-level", "debug")
	require.NoError(t, err)
	assert.NotContains(t, out, "password: password")
	assert.Contains(t, out, "****")
	assert.Contains(t, out, "level: debug")
	assert.Contains(t, out, "# password source: env")
	assert.Contains(t, out, "# keyring backend: auto (from default)")
}

func TestConfigShowReportsKeyringBackend(t *testing.T) {
	t.Setenv(config.DirEnv, t.TempDir())
	t.Setenv("MAILFETCH_KEYRING_BACKEND", "file")

	out, err := run(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "# password source: none")
	assert.Contains(t, out, "# keyring backend: file (from env)")
}

func TestEnsureConfigFileWritesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(config.DirEnv, dir)

	path, err := ensureConfigFile()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), path)

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)

	require.NoError(t, os.WriteFile(path, []byte("imap:\n  host: kept.example.com\n"), 0o600))
	_, err = ensureConfigFile()
	require.NoError(t, err)
	cfg, err = config.Load()
	require.NoError(t, err)
	assert.Equal(t, "kept.example.com", cfg.IMAP.Host)
}

func TestInvalidLogLevel(t *testing.T) {
	useLocalServer(t)

	_, err := run(t, "status", "--log-level", "loud")
	assert.ErrorContains(t, err, "unknown log level")
}

func TestAuthLoginStoresConfig(t *testing.T) {
	t.Setenv(config.DirEnv, t.TempDir())

	out, err := run(t, "auth", "login",
		"--imap-host", "imap.example.com",
		"--imap-port", strconv.Itoa(1993),
		"--username", "user@example.com",
		"--password", "s3cret",
		"--store-in-config",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "Config saved to")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "imap.example.com", cfg.IMAP.Host)
	assert.Equal(t, 1993, cfg.IMAP.Port)
	assert.Equal(t, "s3cret", cfg.Auth.Password)
}
