package download

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ytget/model-mirror/internal/browser"
	"github.com/ytget/model-mirror/internal/model"
	"github.com/ytget/model-mirror/internal/publish"
	"github.com/ytget/model-mirror/internal/site"
	"github.com/ytget/model-mirror/internal/store"
	"github.com/ytget/model-mirror/internal/tracker"
)

const (
	assetURL = "https://sketchfab-prod-media.s3.amazonaws.com/archives/abc/file.gltz?X-Amz-Signature=sig"
	pageURL  = "https://sketchfab.com/3d-models/chair-abc"
)

// fakeSession replays a scripted request sequence once the download is
// confirmed
type fakeSession struct {
	confirm  string
	requests []browser.PausedRequest
	loginErr error

	mu      sync.Mutex
	handler browser.RequestHandler
	closed  bool
}

func (f *fakeSession) Navigate(context.Context, string) error { return nil }
func (f *fakeSession) WaitReady(context.Context, string) error { return nil }

func (f *fakeSession) SendKeys(context.Context, string, string) error { return nil }

func (f *fakeSession) Click(_ context.Context, selector string) error {
	if selector != f.confirm {
		return nil
	}
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()
	if handler == nil {
		return nil
	}
	for _, req := range f.requests {
		go handler(context.Background(), req)
	}
	return nil
}

func (f *fakeSession) ClickAndWaitNavigation(context.Context, string) error {
	return f.loginErr
}

func (f *fakeSession) Intercept(_ context.Context, handler browser.RequestHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = handler
	return nil
}

func (f *fakeSession) Cookies(context.Context) ([]model.Cookie, error) {
	return []model.Cookie{{Name: "sb_session", Value: "abc"}, {Name: "csrftoken", Value: "xyz"}}, nil
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSession) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeLauncher struct {
	newSession func() *fakeSession
	err        error

	mu       sync.Mutex
	sessions []*fakeSession
}

func (l *fakeLauncher) Launch(context.Context) (browser.Session, error) {
	if l.err != nil {
		return nil, l.err
	}
	sess := l.newSession()
	l.mu.Lock()
	l.sessions = append(l.sessions, sess)
	l.mu.Unlock()
	return sess, nil
}

func (l *fakeLauncher) launched() []*fakeSession {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*fakeSession(nil), l.sessions...)
}

// requestsWithAsset returns n background requests with the asset request in
// the middle
func requestsWithAsset(n int) []browser.PausedRequest {
	reqs := make([]browser.PausedRequest, 0, n)
	for i := 0; i < n; i++ {
		reqs = append(reqs, browser.PausedRequest{URL: "https://static.sketchfab.com/app.js", Method: "GET"})
	}
	reqs[n/2] = browser.PausedRequest{
		URL:     assetURL,
		Method:  "GET",
		Headers: map[string]string{"Referer": pageURL},
	}
	return reqs
}

type fakeFetcher struct {
	payload []byte
	err     error
	block   chan struct{}
	onFetch func()

	mu  sync.Mutex
	got []*model.CapturedRequest
}

func (f *fakeFetcher) Fetch(ctx context.Context, req *model.CapturedRequest) ([]byte, error) {
	f.mu.Lock()
	f.got = append(f.got, req)
	f.mu.Unlock()

	if f.onFetch != nil {
		f.onFetch()
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.payload, f.err
}

func (f *fakeFetcher) captured() []*model.CapturedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*model.CapturedRequest(nil), f.got...)
}

type fakePublisher struct {
	url string
	err error

	mu     sync.Mutex
	folder string
	kind   string
	body   []byte
}

func (p *fakePublisher) Upload(_ context.Context, r io.Reader, folder, kind string) (publish.Result, error) {
	body, _ := io.ReadAll(r)
	p.mu.Lock()
	p.folder, p.kind, p.body = folder, kind, body
	p.mu.Unlock()
	if p.err != nil {
		return publish.Result{}, p.err
	}
	return publish.Result{URL: p.url, Provider: "fake", Bytes: int64(len(body))}, nil
}

type harness struct {
	service   *Service
	store     store.Store
	launcher  *fakeLauncher
	fetcher   *fakeFetcher
	publisher *fakePublisher
}

func newHarness(t *testing.T, interceptionTimeout time.Duration) *harness {
	t.Helper()

	st, err := store.OpenInMemory(nil)
	require.NoError(t, err)

	adapter := site.NewSketchfab()
	h := &harness{
		store: st,
		launcher: &fakeLauncher{newSession: func() *fakeSession {
			return &fakeSession{confirm: adapter.DownloadFlow().ConfirmSelector, requests: requestsWithAsset(9)}
		}},
		fetcher:   &fakeFetcher{payload: []byte("glTF-archive")},
		publisher: &fakePublisher{url: "https://cdn.example/x.gltz"},
	}
	h.service = NewService(Deps{
		Launcher:  h.launcher,
		Adapter:   adapter,
		Fetcher:   h.fetcher,
		Publisher: h.publisher,
		Tracker:   tracker.New(st, nil),
		Store:     st,
	}, Options{
		Credentials:         site.Credentials{Email: "a@b.c", Password: "pw"},
		InterceptionTimeout: interceptionTimeout,
		MaxParallel:         2,
	})

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.service.Shutdown(ctx)
		_ = st.Close()
	})
	return h
}

func (h *harness) wait(t *testing.T, runID string) model.UploadRun {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	run, err := h.service.WaitRun(ctx, runID)
	require.NoError(t, err)
	return run
}

func (h *harness) record(t *testing.T, id string) *model.Record {
	t.Helper()
	rec, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	return rec
}
