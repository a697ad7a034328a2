package browser

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// fakeDevTools answers the DevTools protocol calls chromedp issues for
// target creation and Runtime.evaluate. Every other command gets an empty
// result.
type fakeDevTools struct {
	numbers map[string]int

	mu        sync.Mutex
	targets   int
	methods   []string
	evaluated []string
}

type cdpMessage struct {
	ID        int64           `json:"id,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Method    string          `json:"method,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
}

func newFakeDevTools(t *testing.T, numbers map[string]int) (*fakeDevTools, string) {
	t.Helper()
	f := &fakeDevTools{numbers: numbers}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, "ws" + strings.TrimPrefix(srv.URL, "http") + "/devtools/browser/fake"
}

func (f *fakeDevTools) serve(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		data, err := wsutil.ReadClientText(conn)
		if err != nil {
			return
		}
		var msg cdpMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.ID == 0 {
			continue
		}
		out, err := json.Marshal(cdpMessage{ID: msg.ID, SessionID: msg.SessionID, Result: f.reply(msg)})
		if err != nil {
			return
		}
		if err := wsutil.WriteServerText(conn, out); err != nil {
			return
		}
	}
}

func (f *fakeDevTools) reply(msg cdpMessage) json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.methods = append(f.methods, msg.Method)

	switch msg.Method {
	case "Target.createTarget":
		f.targets++
		return json.RawMessage(fmt.Sprintf(`{"targetId":"target-%d"}`, f.targets))
	case "Target.attachToTarget":
		var p struct {
			TargetID string `json:"targetId"`
		}
		_ = json.Unmarshal(msg.Params, &p)
		return json.RawMessage(fmt.Sprintf(`{"sessionId":"session-%s"}`, p.TargetID))
	case "Runtime.evaluate":
		var p struct {
			Expression string `json:"expression"`
		}
		_ = json.Unmarshal(msg.Params, &p)
		if p.Expression == "self" {
			return json.RawMessage(`{"result":{"type":"object","className":"Window"}}`)
		}
		f.evaluated = append(f.evaluated, msg.SessionID+": "+p.Expression)
		if n, ok := f.numbers[p.Expression]; ok {
			return json.RawMessage(fmt.Sprintf(`{"result":{"type":"number","value":%d}}`, n))
		}
		return json.RawMessage(`{"result":{"type":"undefined"}}`)
	}
	return json.RawMessage(`{}`)
}

func (f *fakeDevTools) saw(method string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.methods {
		if m == method {
			return true
		}
	}
	return false
}

func (f *fakeDevTools) evaluations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.evaluated...)
}
