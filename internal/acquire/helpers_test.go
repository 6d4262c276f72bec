package acquire

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ZebulonRouseFrantzich/depfetch/internal/registry"
	"github.com/ZebulonRouseFrantzich/depfetch/internal/testutil"
	"github.com/ZebulonRouseFrantzich/depfetch/internal/trust"
)

const topLevel = "ffmpeg-7.0.2-amd64-static"

// fileServer serves fixed payloads by path and counts requests.
type fileServer struct {
	*httptest.Server

	mu    sync.Mutex
	files map[string][]byte
	hits  int
}

func newFileServer(t *testing.T, files map[string][]byte) *fileServer {
	t.Helper()

	s := &fileServer{files: files}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits++
		body, ok := s.files[strings.TrimPrefix(r.URL.Path, "/")]
		s.mu.Unlock()

		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *fileServer) url(name string) string {
	return s.URL + "/" + name
}

func (s *fileServer) requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits
}

func ffmpegArchive(t *testing.T, name string) []byte {
	t.Helper()
	return testutil.ArchiveBytes(t, name, testutil.FFmpegTree(topLevel))
}

func sha(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// newRegistry writes table to a JSON registry in a temp dir and loads it.
func newRegistry(t *testing.T, table registry.Table) *registry.Registry {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ffmpeg_source.json")
	reg, err := registry.New(path, table)
	require.NoError(t, err)
	require.NoError(t, reg.Save())

	loaded, err := registry.Load(path)
	require.NoError(t, err)
	return loaded
}

type harness struct {
	orch *Orchestrator
	out  *bytes.Buffer
	dest string
}

func newHarness(t *testing.T, reg *registry.Registry, d trust.Decider, configure ...func(*Config)) *harness {
	t.Helper()

	out := &bytes.Buffer{}
	cfg := Config{
		Registry: reg,
		Arbiter:  trust.NewArbiter(d, out),
		Downloader: NewDownloader(
			WithRetries(0),
			WithBackoff(func(int) time.Duration { return 0 }),
		),
		Output: out,
	}
	for _, fn := range configure {
		fn(&cfg)
	}

	orch, err := New(cfg)
	require.NoError(t, err)

	return &harness{orch: orch, out: out, dest: filepath.Join(t.TempDir(), "ffmpeg_bin")}
}

// answers is a Decider replaying fixed answers.
type answers []bool

func (a *answers) Decide(_ context.Context, _ string) (bool, error) {
	if len(*a) == 0 {
		return false, trust.ErrNoAnswer
	}
	next := (*a)[0]
	*a = (*a)[1:]
	return next, nil
}
