package dispatch

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/onnwee/osu-relay/enrich"
	"github.com/onnwee/osu-relay/osuapi"
	"github.com/onnwee/osu-relay/refparse"
	"github.com/onnwee/osu-relay/relay"
	"github.com/onnwee/osu-relay/testutil"
)

type sentMessage struct{ channel, text string }

type fakeSource struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeSource) Say(channel, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{channel, text})
	return nil
}

func (f *fakeSource) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

type fixture struct {
	srv    *testutil.MockOsuServer
	source *fakeSource
	queue  *relay.Queue
	d      *Dispatcher
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	srv := testutil.NewMockOsuServer(t)
	srv.MockBeatmap(67890, 12345, "Insane", 5.1234, 200, 180, "ranked", "osu", "xi", "FREEDOM DiVE")
	srv.MockAttributes(67890, 5.789)
	srv.MockUser("124493", 124493, "chocomint", "JP", "osu", 1000, 50, 9876.6)
	if opts.Channels == nil {
		opts.Channels = map[string]string{"shigetora": "chocomint"}
	}
	source := &fakeSource{}
	queue := relay.NewQueue()
	svc := enrich.New(osuapi.NewWithHTTPClient(srv.URL, srv.Client(), 0), "")
	return &fixture{srv: srv, source: source, queue: queue, d: New(svc, source, queue, opts)}
}

func (f *fixture) drain(t *testing.T) []relay.Message {
	t.Helper()
	var out []relay.Message
	for f.queue.Len() > 0 {
		msg, err := f.queue.Dequeue(context.Background())
		if err != nil {
			t.Fatalf("Dequeue: %v", err)
		}
		out = append(out, msg)
	}
	return out
}

func TestHandle_BeatmapEndToEnd(t *testing.T) {
	f := newFixture(t, Options{})
	f.d.Handle(context.Background(), Inbound{
		ID:      "msg-1",
		Channel: "shigetora",
		Sender:  "viewer",
		Text:    "check https://osu.ppy.sh/beatmapsets/12345#osu/67890 +HD",
	})

	sent := f.source.messages()
	if len(sent) != 1 {
		t.Fatalf("source messages = %d, want 1: %v", len(sent), sent)
	}
	wantSource := "[Ranked] xi - FREEDOM DiVE [Insane] +HD ★ 5.79"
	if sent[0].channel != "shigetora" || sent[0].text != wantSource {
		t.Errorf("source = %+v, want %q", sent[0], wantSource)
	}

	queued := f.drain(t)
	if len(queued) != 1 {
		t.Fatalf("relay enqueues = %d, want 1", len(queued))
	}
	wantRelay := "viewer » [https://osu.ppy.sh/b/67890 xi - FREEDOM DiVE [Insane]] +HD ★ 5.79 ⏰ 03:20 ♫ 180 (Ranked) [https://catboy.best/d/12345 mirror]"
	if queued[0].Target != "chocomint" || queued[0].Text != wantRelay {
		t.Errorf("relay = %+v\nwant text %q", queued[0], wantRelay)
	}
	if f.srv.CountPrefix("POST /beatmaps/67890/attributes") != 1 {
		t.Errorf("expected one attribute recomputation, got requests %v", f.srv.Requests())
	}
}

func TestHandle_NoModsSkipsRecompute(t *testing.T) {
	f := newFixture(t, Options{})
	f.d.Handle(context.Background(), Inbound{Channel: "Shigetora", Sender: "viewer", Text: "osu.ppy.sh/b/67890"})

	sent := f.source.messages()
	if len(sent) != 1 || sent[0].text != "[Ranked] xi - FREEDOM DiVE [Insane] ★ 5.12" {
		t.Fatalf("source = %v", sent)
	}
	queued := f.drain(t)
	if len(queued) != 1 || queued[0].Target != "chocomint" {
		t.Fatalf("channel lookup should be case-insensitive: %v", queued)
	}
	if f.srv.CountPrefix("POST ") != 0 {
		t.Errorf("no-mod request should not recompute attributes")
	}
}

func TestHandle_ProfileOnlyToSource(t *testing.T) {
	f := newFixture(t, Options{})
	f.d.Handle(context.Background(), Inbound{Channel: "shigetora", Sender: "viewer", Text: "https://osu.ppy.sh/users/124493"})

	sent := f.source.messages()
	if len(sent) != 1 || sent[0].text != "🟣 chocomint - #1000 (JP: #50) 9877pp" {
		t.Fatalf("source = %v", sent)
	}
	if f.queue.Len() != 0 {
		t.Errorf("profile lookups must never be relayed")
	}
}

func TestHandle_BothLinks(t *testing.T) {
	f := newFixture(t, Options{})
	f.d.Handle(context.Background(), Inbound{
		Channel: "shigetora",
		Sender:  "viewer",
		Text:    "osu.ppy.sh/beatmaps/67890 by osu.ppy.sh/u/124493",
	})
	if n := len(f.source.messages()); n != 2 {
		t.Errorf("source messages = %d, want 2", n)
	}
	if f.queue.Len() != 1 {
		t.Errorf("relay enqueues = %d, want 1", f.queue.Len())
	}
}

func TestHandle_Suppression(t *testing.T) {
	text := "https://osu.ppy.sh/beatmapsets/12345#osu/67890 https://osu.ppy.sh/users/124493"
	tests := []struct {
		name string
		opts Options
		msg  Inbound
	}{
		{
			name: "channel owner with skip enabled",
			opts: Options{SkipOwner: true},
			msg:  Inbound{Channel: "shigetora", Sender: "Shigetora", Text: text},
		},
		{
			name: "ignored sender",
			opts: Options{Ignore: map[string]bool{"nightbot": true}},
			msg:  Inbound{Channel: "shigetora", Sender: "Nightbot", Text: text},
		},
		{
			name: "empty sender",
			opts: Options{},
			msg:  Inbound{Channel: "shigetora", Text: text},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.opts)
			f.d.Handle(context.Background(), tt.msg)
			if n := len(f.source.messages()); n != 0 {
				t.Errorf("source messages = %d, want 0", n)
			}
			if f.queue.Len() != 0 {
				t.Errorf("relay enqueues = %d, want 0", f.queue.Len())
			}
			if reqs := f.srv.Requests(); len(reqs) != 0 {
				t.Errorf("no lookups expected, got %v", reqs)
			}
		})
	}
}

func TestHandle_OwnerAllowedWhenSkipDisabled(t *testing.T) {
	f := newFixture(t, Options{SkipOwner: false})
	f.d.Handle(context.Background(), Inbound{Channel: "shigetora", Sender: "shigetora", Text: "osu.ppy.sh/b/67890"})
	if len(f.source.messages()) != 1 || f.queue.Len() != 1 {
		t.Errorf("owner request should be handled when skip is off")
	}
}

func TestHandle_LookupFailuresAreSilent(t *testing.T) {
	f := newFixture(t, Options{})
	f.srv.MockStatus("GET", "/beatmaps/500", 503)

	for _, text := range []string{
		"osu.ppy.sh/b/404",        // not found
		"osu.ppy.sh/b/500",        // unavailable
		"osu.ppy.sh/users/nobody", // unknown user
		"just chatting",           // nothing recognized
	} {
		f.d.Handle(context.Background(), Inbound{Channel: "shigetora", Sender: "viewer", Text: text})
	}
	if n := len(f.source.messages()); n != 0 {
		t.Errorf("source messages = %d, want 0: %v", n, f.source.messages())
	}
	if f.queue.Len() != 0 {
		t.Errorf("relay enqueues = %d, want 0", f.queue.Len())
	}
}

func TestHandle_UnmappedChannelStillReplies(t *testing.T) {
	f := newFixture(t, Options{})
	f.d.Handle(context.Background(), Inbound{Channel: "otherchannel", Sender: "viewer", Text: "osu.ppy.sh/b/67890"})
	if len(f.source.messages()) != 1 {
		t.Errorf("source reply expected for unmapped channel")
	}
	if f.queue.Len() != 0 {
		t.Errorf("unmapped channel must not enqueue")
	}
}

func TestHandle_SourceSendFailureStillRelays(t *testing.T) {
	f := newFixture(t, Options{})
	f.source.err = errors.New("not joined")
	f.d.Handle(context.Background(), Inbound{Channel: "shigetora", Sender: "viewer", Text: "osu.ppy.sh/b/67890"})
	if f.queue.Len() != 1 {
		t.Errorf("relay enqueues = %d, want 1", f.queue.Len())
	}
}

func TestSubmitAndWait(t *testing.T) {
	f := newFixture(t, Options{MaxInFlight: 2})
	for i := 0; i < 5; i++ {
		f.d.Submit(context.Background(), Inbound{Channel: "shigetora", Sender: "viewer", Text: "osu.ppy.sh/b/67890"})
	}
	f.d.Wait()
	if n := len(f.source.messages()); n != 5 {
		t.Errorf("source messages = %d, want 5", n)
	}
	if f.queue.Len() != 5 {
		t.Errorf("relay enqueues = %d, want 5", f.queue.Len())
	}
}

func TestSubmitDoesNotBlockWhenSaturated(t *testing.T) {
	f := newFixture(t, Options{MaxInFlight: 1})
	started := make(chan struct{}, 4)
	release := make(chan struct{})
	var running, peak atomic.Int32
	f.srv.Handlers["GET /beatmaps/777"] = func(w http.ResponseWriter, r *http.Request) {
		n := running.Add(1)
		defer running.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		started <- struct{}{}
		select {
		case <-release:
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusNotFound)
	}

	f.d.Submit(context.Background(), Inbound{Channel: "shigetora", Sender: "viewer", Text: "osu.ppy.sh/b/777"})
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("first lookup never started")
	}

	begin := time.Now()
	f.d.Submit(context.Background(), Inbound{Channel: "shigetora", Sender: "viewer", Text: "osu.ppy.sh/b/777"})
	f.d.Submit(context.Background(), Inbound{Channel: "shigetora", Sender: "viewer", Text: "hello"})
	if elapsed := time.Since(begin); elapsed > 100*time.Millisecond {
		t.Errorf("Submit blocked for %v while the handler limit was reached", elapsed)
	}

	close(release)
	f.d.Wait()
	if p := peak.Load(); p != 1 {
		t.Errorf("peak concurrent lookups = %d, want 1", p)
	}
}

func TestSubmitAfterCancelIsDropped(t *testing.T) {
	f := newFixture(t, Options{MaxInFlight: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.d.Submit(ctx, Inbound{Channel: "shigetora", Sender: "viewer", Text: "osu.ppy.sh/b/67890"})
	f.d.Wait()
	if n := len(f.source.messages()); n != 0 {
		t.Errorf("source messages = %d, want 0 after shutdown", n)
	}
}

func TestFormatProfileMissingRanks(t *testing.T) {
	got := FormatProfile(enrich.UserView{Username: "newbie", CountryCode: "PL", PP: 0})
	if got != "newbie - #0 (PL: #0) 0pp" {
		t.Errorf("FormatProfile = %q", got)
	}
}

func TestFormatRelayHalfTime(t *testing.T) {
	view := enrich.BeatmapView{
		URL:         "https://osu.ppy.sh/b/1",
		DisplayName: "a - t [v]",
		StarRating:  3.2,
		Duration:    enrich.Duration(180, refparse.ModifierSet{refparse.ModHalfTime}),
		BPM:         enrich.BPM(180, refparse.ModifierSet{refparse.ModHalfTime}),
		Status:      "WIP",
		MirrorURL:   "m",
	}
	got := FormatRelayRequest("x", view, refparse.ModifierSet{refparse.ModHalfTime})
	if !strings.Contains(got, "+HT ★ 3.20 ⏰ 03:59 ♫ 135 (WIP)") {
		t.Errorf("FormatRelayRequest = %q", got)
	}
}
