// Package collyfetcher implements the crawl Engine using gocolly.
package collyfetcher

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobboard-crawler/internal/crawler"
)

const (
	taskKey    = "task"
	startedKey = "started"
)

// Config controls collector behavior.
type Config struct {
	UserAgent      string
	Parallelism    int
	Delay          time.Duration
	RequestTimeout time.Duration
	AllowRevisit   bool
	MaxBodySize    int
}

// Engine schedules fetches on an async Colly collector and hands each outcome
// to the bound crawler.Handler, one callback at a time.
type Engine struct {
	cfg       Config
	collector *colly.Collector
	logger    *zap.Logger

	// dispatch serializes Handler calls across collector goroutines.
	dispatch sync.Mutex
	handler  crawler.Handler
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds an Engine.
func New(cfg Config, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(true))
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.AllowURLRevisit = cfg.AllowRevisit
	c.IgnoreRobotsTxt = true
	if cfg.MaxBodySize > 0 {
		c.MaxBodySize = cfg.MaxBodySize
	}
	c.WithTransport(newHTTPTransport())

	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	c.SetRequestTimeout(timeout)

	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = 1
	}
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: parallelism,
		Delay:       cfg.Delay,
	}); err != nil {
		return nil, fmt.Errorf("set collector limits: %w", err)
	}

	e := &Engine{
		cfg:       cfg,
		collector: c,
		logger:    logger,
	}
	e.configureCollectorHooks(c)
	return e, nil
}

// Bind sets the handler that receives fetch outcomes. Call before Submit.
func (e *Engine) Bind(handler crawler.Handler) {
	e.dispatch.Lock()
	defer e.dispatch.Unlock()
	e.handler = handler
}

// Submit schedules a GET for the task. Rejections (already visited, bad URL)
// are returned synchronously and the handler is not called for them.
func (e *Engine) Submit(task crawler.Task) error {
	ctx := colly.NewContext()
	ctx.Put(taskKey, task)
	if err := e.collector.Request(http.MethodGet, task.URL, nil, ctx, nil); err != nil {
		return fmt.Errorf("schedule %s: %w", task.URL, err)
	}
	return nil
}

// Wait blocks until every scheduled request, including those submitted from
// handlers, has completed.
func (e *Engine) Wait() {
	e.collector.Wait()
}

func (e *Engine) configureCollectorHooks(hooks collectorHooks) {
	hooks.OnRequest(func(r *colly.Request) {
		r.Ctx.Put(startedKey, time.Now())
		e.logger.Debug("fetching", zap.String("url", r.URL.String()))
	})

	hooks.OnResponse(func(r *colly.Response) {
		task, ok := taskFrom(r)
		if !ok {
			e.logger.Error("response without task context", zap.String("url", requestURL(r)))
			return
		}
		if r.StatusCode < 200 || r.StatusCode > 299 {
			e.deliverFailure(task, fmt.Errorf("%w: %d", crawler.ErrUnexpectedStatus, r.StatusCode))
			return
		}
		page := crawler.Page{
			URL:        r.Request.URL,
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   elapsed(r),
		}
		e.deliverPage(task, page)
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		task, ok := taskFrom(r)
		if !ok {
			e.logger.Error("fetch error without task context", zap.String("url", requestURL(r)), zap.Error(err))
			return
		}
		if r.StatusCode != 0 {
			err = fmt.Errorf("%w: %d: %v", crawler.ErrUnexpectedStatus, r.StatusCode, err)
		}
		e.deliverFailure(task, err)
	})
}

func (e *Engine) deliverPage(task crawler.Task, page crawler.Page) {
	e.dispatch.Lock()
	defer e.dispatch.Unlock()
	if e.handler == nil {
		e.logger.Warn("no handler bound; discarding page", zap.String("url", task.URL))
		return
	}
	e.handler.HandlePage(task, page)
}

func (e *Engine) deliverFailure(task crawler.Task, err error) {
	e.dispatch.Lock()
	defer e.dispatch.Unlock()
	if e.handler == nil {
		e.logger.Warn("no handler bound; discarding failure", zap.String("url", task.URL), zap.Error(err))
		return
	}
	e.handler.HandleFailure(task, err)
}

func taskFrom(r *colly.Response) (crawler.Task, bool) {
	if r == nil || r.Ctx == nil {
		return crawler.Task{}, false
	}
	task, ok := r.Ctx.GetAny(taskKey).(crawler.Task)
	return task, ok
}

func elapsed(r *colly.Response) time.Duration {
	if r.Ctx == nil {
		return 0
	}
	started, ok := r.Ctx.GetAny(startedKey).(time.Time)
	if !ok {
		return 0
	}
	return time.Since(started)
}

func requestURL(r *colly.Response) string {
	if r == nil || r.Request == nil || r.Request.URL == nil {
		return ""
	}
	return r.Request.URL.String()
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
