// Package sync triggers the tracker's post-import housekeeping: an
// authenticated session, a cache flush when the script runner add-on is
// installed, and a project re-index. Everything here is best effort; a
// failed step flags the import status but never fails the import.
package sync

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/telemat/jiraload/internal/httpclient"
	"github.com/telemat/jiraload/subscription"
)

// clearCacheBody is the canned script-runner request flushing the
// tracker's caches.
const clearCacheBody = "cannedScript=com.onresolve.jira.groovy.canned.admin.ClearCaches" +
	"&cannedScriptArgs_FIELD_WHICH_CACHE=jira" +
	"&cannedScriptArgs_Hidden_FIELD_WHICH_CACHE=jira" +
	"&cannedScriptArgs_Hidden_output=Cache+cleared." +
	"&RunCanned=Run&webSudoIsPost=true&os_cookie=true"

// Synchronizer drives the post-commit calls against the tracker's web UI.
type Synchronizer struct {
	client *httpclient.Client
	log    *zap.SugaredLogger
}

// New creates a synchronizer with its own cookie session.
func New(timeout time.Duration, log *zap.SugaredLogger) *Synchronizer {
	return &Synchronizer{client: httpclient.New(timeout), log: log.Named("sync")}
}

// Synchronize authenticates as the subscription's administration account,
// clears the tracker cache when the script runner is available, and
// re-indexes the project. Returns true only when every attempted step
// succeeded.
func (s *Synchronizer) Synchronize(ctx context.Context, sub *subscription.Subscription,
	project int, scriptRunner bool) bool {
	if !s.authenticate(ctx, sub) {
		s.log.Warnw("tracker authentication failed", "url", sub.URL, "user", sub.AdminUser)
		return false
	}
	if scriptRunner && !s.clearCache(ctx, sub) {
		s.log.Warnw("tracker cache flush failed", "url", sub.URL)
		return false
	}
	if !s.reIndex(ctx, sub, project) {
		s.log.Warnw("tracker re-index failed", "url", sub.URL, "project", project)
		return false
	}
	s.log.Infow("tracker synchronized", "url", sub.URL, "project", project)
	return true
}

// authenticate logs in through the form endpoint, then confirms the
// administration sudo session. The tracker answers both with redirects:
// a login landing anywhere but back on the login page, and a sudo response
// carrying the web-sudo header.
func (s *Synchronizer) authenticate(ctx context.Context, sub *subscription.Subscription) bool {
	base := strings.TrimSuffix(sub.URL, "/")

	// Touch the login page first so the session cookie exists before the
	// credentials are posted.
	if !s.get(ctx, base+"/login.jsp") {
		return false
	}

	form := url.Values{
		"os_username":    {sub.AdminUser},
		"os_password":    {sub.AdminPassword},
		"os_destination": {""},
		"atl_token":      {""},
		"login":          {"Connexion"},
	}
	resp, ok := s.post(ctx, base+"/login.jsp", form.Encode())
	if !ok {
		return false
	}
	location := resp.Header.Get("Location")
	if !isRedirect(resp.StatusCode) || location == "" || strings.HasSuffix(location, "login.jsp") {
		return false
	}

	form = url.Values{
		"webSudoIsPost":   {"false"},
		"os_cookie":       {"true"},
		"authenticate":    {"Confirm"},
		"webSudoPassword": {sub.AdminPassword},
	}
	resp, ok = s.post(ctx, base+"/secure/admin/WebSudoAuthenticate.jspa", form.Encode())
	if !ok {
		return false
	}
	return isRedirect(resp.StatusCode) && resp.Header.Get("X-Atlassian-WebSudo") == "Has-Authentication"
}

func (s *Synchronizer) clearCache(ctx context.Context, sub *subscription.Subscription) bool {
	base := strings.TrimSuffix(sub.URL, "/")
	resp, ok := s.post(ctx, base+"/secure/admin/groovy/CannedScriptRunner.jspa", clearCacheBody)
	return ok && resp.StatusCode < http.StatusBadRequest
}

func (s *Synchronizer) reIndex(ctx context.Context, sub *subscription.Subscription, project int) bool {
	base := strings.TrimSuffix(sub.URL, "/")
	target := fmt.Sprintf("%s/secure/admin/IndexProject.jspa?pid=%d", base, project)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return false
	}
	req.Header.Set("X-Atlassian-Token", "nocheck")
	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	defer drain(resp)
	return resp.StatusCode < http.StatusBadRequest
}

func (s *Synchronizer) get(ctx context.Context, target string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return false
	}
	req.Header.Set("X-Atlassian-Token", "nocheck")
	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	defer drain(resp)
	return resp.StatusCode < http.StatusBadRequest
}

// post sends a form body without following the redirect the tracker answers
// with, so the response headers stay observable.
func (s *Synchronizer) post(ctx context.Context, target, body string) (*http.Response, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(body))
	if err != nil {
		return nil, false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Atlassian-Token", "nocheck")
	resp, err := s.client.DoNoRedirect(req)
	if err != nil {
		return nil, false
	}
	drain(resp)
	return resp, true
}

func isRedirect(code int) bool {
	return code >= http.StatusMultipleChoices && code < http.StatusBadRequest
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	_ = resp.Body.Close()
}
