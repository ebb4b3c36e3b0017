package collyfetcher

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobboard-crawler/internal/crawler"
)

type recordingHandler struct {
	mu       sync.Mutex
	pages    map[string]crawler.Page
	failures map[string]error
	active   int32
	overlap  bool
	onPage   func(task crawler.Task)
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		pages:    make(map[string]crawler.Page),
		failures: make(map[string]error),
	}
}

func (h *recordingHandler) enter() {
	if atomic.AddInt32(&h.active, 1) > 1 {
		h.mu.Lock()
		h.overlap = true
		h.mu.Unlock()
	}
}

func (h *recordingHandler) leave() {
	atomic.AddInt32(&h.active, -1)
}

func (h *recordingHandler) HandlePage(task crawler.Task, page crawler.Page) {
	h.enter()
	defer h.leave()
	time.Sleep(5 * time.Millisecond)
	h.mu.Lock()
	h.pages[task.URL] = page
	h.mu.Unlock()
	if h.onPage != nil {
		h.onPage(task)
	}
}

func (h *recordingHandler) HandleFailure(task crawler.Task, err error) {
	h.enter()
	defer h.leave()
	h.mu.Lock()
	h.failures[task.URL] = err
	h.mu.Unlock()
}

func TestEngineDeliversPagesAndFailures(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	for i := 0; i < 4; i++ {
		path := fmt.Sprintf("/page/%d", i)
		mux.HandleFunc(path, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = fmt.Fprintf(w, "<html><body>%s</body></html>", path)
		})
	}
	mux.HandleFunc("/missing", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	engine, err := New(Config{UserAgent: "test-agent", Parallelism: 4, RequestTimeout: 5 * time.Second}, nil)
	require.NoError(t, err)
	handler := newRecordingHandler()
	engine.Bind(handler)

	for i := 0; i < 4; i++ {
		require.NoError(t, engine.Submit(crawler.Task{
			Kind: crawler.TaskListing,
			URL:  fmt.Sprintf("%s/page/%d", srv.URL, i),
			Seed: "CA",
		}))
	}
	require.NoError(t, engine.Submit(crawler.Task{Kind: crawler.TaskDetail, URL: srv.URL + "/missing", Seed: "CA"}))
	engine.Wait()

	assert.Len(t, handler.pages, 4)
	page := handler.pages[srv.URL+"/page/2"]
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, string(page.Body), "/page/2")
	require.Contains(t, handler.failures, srv.URL+"/missing")
	assert.True(t, errors.Is(handler.failures[srv.URL+"/missing"], crawler.ErrUnexpectedStatus))
	assert.False(t, handler.overlap, "handler calls must not overlap")
}

func TestEngineFollowUpSubmitsFromHandler(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	engine, err := New(Config{Parallelism: 2}, nil)
	require.NoError(t, err)
	handler := newRecordingHandler()
	handler.onPage = func(task crawler.Task) {
		if task.PageNumber < 3 {
			next := task
			next.PageNumber++
			next.URL = fmt.Sprintf("%s/?page=%d", srv.URL, next.PageNumber)
			assert.NoError(t, engine.Submit(next))
		}
	}
	engine.Bind(handler)

	require.NoError(t, engine.Submit(crawler.Task{Kind: crawler.TaskListing, URL: srv.URL + "/?page=1", PageNumber: 1}))
	engine.Wait()

	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
	assert.Len(t, handler.pages, 3)
}

func TestEngineRejectsRevisit(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	engine, err := New(Config{}, nil)
	require.NoError(t, err)
	engine.Bind(newRecordingHandler())

	task := crawler.Task{Kind: crawler.TaskDetail, URL: srv.URL + "/viewjob"}
	require.NoError(t, engine.Submit(task))
	engine.Wait()
	assert.Error(t, engine.Submit(task))
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	engine, err := New(Config{}, nil)
	require.NoError(t, err)
	handler := newRecordingHandler()
	engine.Bind(handler)

	hooks := &stubHooks{}
	engine.configureCollectorHooks(hooks)
	require.NotNil(t, hooks.onRequest)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	task := crawler.Task{Kind: crawler.TaskListing, URL: "https://www.indeed.com/jobs?q=Go&l=CA", Seed: "CA"}
	ctx := colly.NewContext()
	ctx.Put(taskKey, task)
	req := &colly.Request{URL: mustParseURL(t, task.URL), Ctx: ctx, Headers: &http.Header{}}
	hooks.onRequest(req)

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusOK,
		Body:       []byte("body"),
		Ctx:        ctx,
		Request:    req,
		Headers:    &http.Header{},
	})
	got, ok := handler.pages[task.URL]
	require.True(t, ok)
	assert.Equal(t, "body", string(got.Body))
	assert.Equal(t, task.URL, got.URL.String())

	hooks.onResponse(&colly.Response{StatusCode: http.StatusInternalServerError, Ctx: ctx, Request: req})
	assert.True(t, errors.Is(handler.failures[task.URL], crawler.ErrUnexpectedStatus))

	hooks.onError(&colly.Response{Ctx: ctx, Request: req}, errors.New("boom"))
	assert.EqualError(t, handler.failures[task.URL], "boom")
}

func TestHooksIgnoreResponsesWithoutTask(t *testing.T) {
	t.Parallel()

	engine, err := New(Config{}, nil)
	require.NoError(t, err)
	handler := newRecordingHandler()
	engine.Bind(handler)

	hooks := &stubHooks{}
	engine.configureCollectorHooks(hooks)
	req := &colly.Request{URL: mustParseURL(t, "https://example.com"), Ctx: colly.NewContext()}
	hooks.onResponse(&colly.Response{StatusCode: http.StatusOK, Ctx: req.Ctx, Request: req})
	hooks.onError(&colly.Response{Ctx: req.Ctx, Request: req}, nil)

	assert.Empty(t, handler.pages)
	assert.Empty(t, handler.failures)
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse url %q: %v", raw, err)
	}
	return u
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback) {
	s.onRequest = cb
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
