package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytget/model-mirror/internal/model"
)

func isAsset(rawURL string) bool {
	return strings.Contains(rawURL, "assets.example")
}

func staticCookies(cookies ...model.Cookie) CookieSource {
	return func(context.Context) ([]model.Cookie, error) {
		return cookies, nil
	}
}

func TestObserver_CapturesFirstMatch(t *testing.T) {
	obs := NewObserver(isAsset, staticCookies(
		model.Cookie{Name: "sb_session", Value: "abc"},
		model.Cookie{Name: "csrftoken", Value: "xyz"},
	))
	ctx := context.Background()

	assert.Equal(t, DecisionContinue, obs.Handle(ctx, PausedRequest{URL: "https://site.example/app.js", Method: "GET"}))

	decision := obs.Handle(ctx, PausedRequest{
		URL:     "https://assets.example/archive.zip?sig=1",
		Method:  "GET",
		Headers: map[string]string{"Referer": "https://site.example/"},
	})
	assert.Equal(t, DecisionAbort, decision)

	captured, err := obs.Wait(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "https://assets.example/archive.zip?sig=1", captured.URL)
	assert.Equal(t, "GET", captured.Method)
	assert.Equal(t, "https://site.example/", captured.Headers["Referer"])
	assert.Equal(t, "sb_session=abc;csrftoken=xyz", captured.Cookie)

	// later matches are dropped, never captured
	assert.Equal(t, DecisionAbort, obs.Handle(ctx, PausedRequest{URL: "https://assets.example/other.zip"}))
	again, err := obs.Wait(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, captured, again)

	forwarded, dropped := obs.Stats()
	assert.Equal(t, 1, forwarded)
	assert.Equal(t, 1, dropped)
}

func TestObserver_ExactlyOneCaptureUnderConcurrency(t *testing.T) {
	const total = 200
	const matching = 17

	obs := NewObserver(isAsset, nil)
	ctx := context.Background()

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		stats = map[Decision]int{}
	)
	for i := 0; i < total; i++ {
		url := fmt.Sprintf("https://site.example/r/%d", i)
		if i%(total/matching) == 0 {
			url = fmt.Sprintf("https://assets.example/a/%d", i)
		}
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			d := obs.Handle(ctx, PausedRequest{URL: u})
			mu.Lock()
			stats[d]++
			mu.Unlock()
		}(url)
	}
	wg.Wait()

	forwarded, dropped := obs.Stats()
	assert.Equal(t, forwarded, stats[DecisionContinue])
	assert.Equal(t, dropped+1, stats[DecisionAbort])
	assert.Equal(t, total, forwarded+dropped+1)

	captured, err := obs.Wait(ctx, time.Second)
	require.NoError(t, err)
	assert.True(t, isAsset(captured.URL))
}

func TestObserver_WaitTimeout(t *testing.T) {
	obs := NewObserver(isAsset, nil)
	obs.Handle(context.Background(), PausedRequest{URL: "https://site.example/"})

	_, err := obs.Wait(context.Background(), 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrInterceptionTimeout)
}

func TestObserver_WaitContext(t *testing.T) {
	obs := NewObserver(isAsset, nil)

	deadline, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := obs.Wait(deadline, time.Minute)
	assert.ErrorIs(t, err, ErrInterceptionTimeout)

	cancelled, cancel2 := context.WithCancel(context.Background())
	cancel2()
	_, err = obs.Wait(cancelled, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrInterceptionTimeout)
}

func TestObserver_CookieFailure(t *testing.T) {
	boom := errors.New("target closed")
	obs := NewObserver(isAsset, func(context.Context) ([]model.Cookie, error) {
		return nil, boom
	})

	assert.Equal(t, DecisionAbort, obs.Handle(context.Background(), PausedRequest{URL: "https://assets.example/x"}))

	select {
	case <-obs.Done():
	default:
		t.Fatal("Done() not closed after capture")
	}

	captured, err := obs.Wait(context.Background(), time.Second)
	assert.Nil(t, captured)
	assert.ErrorIs(t, err, boom)
}

func TestObserver_CopiesRequest(t *testing.T) {
	body := []byte("payload")
	headers := map[string]string{"Accept": "*/*"}
	obs := NewObserver(isAsset, nil)

	obs.Handle(context.Background(), PausedRequest{URL: "https://assets.example/x", Method: "POST", Body: body, Headers: headers})
	body[0] = 'X'
	headers["Accept"] = "changed"

	captured, err := obs.Wait(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(captured.Body))
	assert.Equal(t, "*/*", captured.Headers["Accept"])
	assert.Empty(t, captured.Cookie)
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "continue", DecisionContinue.String())
	assert.Equal(t, "abort", DecisionAbort.String())
}
