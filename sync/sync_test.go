package sync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/telemat/jiraload/subscription"
)

type trackerStub struct {
	loginRedirect string
	sudoHeader    bool
	cacheCalls    atomic.Int32
	indexCalls    atomic.Int32
	lastIndexPID  atomic.Value
}

func (ts *trackerStub) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/login.jsp", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "nocheck", r.Header.Get("X-Atlassian-Token"))
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusOK)
			return
		}
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "admin", r.PostFormValue("os_username"))
		w.Header().Set("Location", ts.loginRedirect)
		w.WriteHeader(http.StatusFound)
	})
	mux.HandleFunc("/secure/admin/WebSudoAuthenticate.jspa", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "secret", r.PostFormValue("webSudoPassword"))
		if ts.sudoHeader {
			w.Header().Set("X-Atlassian-WebSudo", "Has-Authentication")
		}
		w.Header().Set("Location", "/secure/project/ViewProjects.jspa")
		w.WriteHeader(http.StatusFound)
	})
	mux.HandleFunc("/secure/admin/groovy/CannedScriptRunner.jspa", func(w http.ResponseWriter, r *http.Request) {
		ts.cacheCalls.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/secure/admin/IndexProject.jspa", func(w http.ResponseWriter, r *http.Request) {
		ts.indexCalls.Add(1)
		ts.lastIndexPID.Store(r.URL.Query().Get("pid"))
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func newTestSubscription(url string) *subscription.Subscription {
	return &subscription.Subscription{
		URL:           url,
		AdminUser:     "admin",
		AdminPassword: "secret",
	}
}

func TestSynchronizeFullFlow(t *testing.T) {
	stub := &trackerStub{loginRedirect: "/secure/Dashboard.jspa", sudoHeader: true}
	server := httptest.NewServer(stub.handler(t))
	defer server.Close()

	synchronizer := New(5*time.Second, zaptest.NewLogger(t).Sugar())
	ok := synchronizer.Synchronize(context.Background(), newTestSubscription(server.URL), 10074, true)

	require.True(t, ok)
	assert.Equal(t, int32(1), stub.cacheCalls.Load())
	assert.Equal(t, int32(1), stub.indexCalls.Load())
	assert.Equal(t, "10074", stub.lastIndexPID.Load())
}

func TestSynchronizeSkipsCacheWithoutScriptRunner(t *testing.T) {
	stub := &trackerStub{loginRedirect: "/secure/Dashboard.jspa", sudoHeader: true}
	server := httptest.NewServer(stub.handler(t))
	defer server.Close()

	synchronizer := New(5*time.Second, zaptest.NewLogger(t).Sugar())
	ok := synchronizer.Synchronize(context.Background(), newTestSubscription(server.URL), 10074, false)

	require.True(t, ok)
	assert.Equal(t, int32(0), stub.cacheCalls.Load())
	assert.Equal(t, int32(1), stub.indexCalls.Load())
}

func TestSynchronizeRejectedCredentials(t *testing.T) {
	// The tracker bounces bad credentials back to the login page.
	stub := &trackerStub{loginRedirect: "/login.jsp", sudoHeader: true}
	server := httptest.NewServer(stub.handler(t))
	defer server.Close()

	synchronizer := New(5*time.Second, zaptest.NewLogger(t).Sugar())
	ok := synchronizer.Synchronize(context.Background(), newTestSubscription(server.URL), 10074, true)

	require.False(t, ok)
	assert.Equal(t, int32(0), stub.indexCalls.Load())
}

func TestSynchronizeMissingSudoHeader(t *testing.T) {
	stub := &trackerStub{loginRedirect: "/secure/Dashboard.jspa", sudoHeader: false}
	server := httptest.NewServer(stub.handler(t))
	defer server.Close()

	synchronizer := New(5*time.Second, zaptest.NewLogger(t).Sugar())
	ok := synchronizer.Synchronize(context.Background(), newTestSubscription(server.URL), 10074, true)

	require.False(t, ok)
	assert.Equal(t, int32(0), stub.cacheCalls.Load())
}

func TestSynchronizeUnreachableTracker(t *testing.T) {
	synchronizer := New(time.Second, zaptest.NewLogger(t).Sugar())
	sub := newTestSubscription("http://127.0.0.1:1")

	assert.False(t, synchronizer.Synchronize(context.Background(), sub, 10074, true))
}
