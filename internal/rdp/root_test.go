package rdp

import (
	"context"
	"errors"
	"testing"
	"time"

	"pkt.systems/ffdebug/internal/urlmap"
	"pkt.systems/ffdebug/schema"
)

func TestRootBringUp(t *testing.T) {
	d, w := newTestDispatcher()
	rec := newRecorder()
	root := NewRootActor(d, RootConfig{
		Target:   "file:///srv/app/index.html",
		Resolver: urlmap.NewFileResolver("/srv/app"),
		Listener: rec,
	})

	inject(t, d, `{"from":"root","applicationType":"browser","traits":{}}`)
	select {
	case <-root.Connected():
	case <-time.After(waitTimeout):
		t.Fatalf("root never connected")
	}
	w.expect(t, "root", "listTabs")
	inject(t, d, `{"from":"root","selected":1,"tabs":[
		{"actor":"tab0","url":"about:blank","consoleActor":"console0"},
		{"actor":"tab1","url":"file:///srv/app/index.html","title":"App","consoleActor":"console1"}]}`)

	select {
	case <-root.Ready():
	case <-time.After(waitTimeout):
		t.Fatalf("root never became ready")
	}
	w.expect(t, "tab1", "attach")
	req := w.expect(t, "console1", "startListeners")
	if listeners, _ := req["listeners"].([]any); len(listeners) != 2 {
		t.Fatalf("unexpected listeners %+v", req)
	}
	inject(t, d, `{"from":"console1","startedListeners":["PageError","ConsoleAPI"]}`)
	w.expect(t, "console1", "getCachedMessages")
	inject(t, d, `{"from":"console1","messages":[
		{"_type":"ConsoleAPI","level":"log","arguments":["cached",1]},
		{"_type":"PageError","errorMessage":"boom","sourceName":"file:///srv/app/a.js","lineNumber":3}]}`)

	inject(t, d, `{"from":"tab1","type":"tabAttached","threadActor":"thread1"}`)
	var thread *ContextActor
	select {
	case thread = <-rec.contexts:
	case <-time.After(waitTimeout):
		t.Fatalf("no context published")
	}
	if thread.Name() != "thread1" || root.Tab().Context() != thread {
		t.Fatalf("unexpected context %s", thread.Name())
	}
	w.expect(t, "thread1", "attach")
	w.expect(t, "thread1", "sources")
	inject(t, d, `{"from":"thread1","type":"paused","why":{"type":"attached"}}`)
	inject(t, d, `{"from":"thread1","sources":[{"actor":"src1","url":"file:///srv/app/a.js"}]}`)

	deadline := time.Now().Add(waitTimeout)
	for {
		outputs, _, pauses, _, sources := rec.snapshot()
		if len(outputs) == 2 && len(pauses) == 1 && len(sources) == 1 {
			if outputs[0] != "cached 1\n" || outputs[1] != "boom (file:///srv/app/a.js:3)\n" {
				t.Fatalf("unexpected outputs %q", outputs)
			}
			if pauses[0].Reason != WhyAttached || sources[0].Actor != "src1" {
				t.Fatalf("unexpected pause %+v or source %+v", pauses[0], sources[0])
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("incomplete bring-up: outputs=%q pauses=%d sources=%d", outputs, len(pauses), len(sources))
		}
		time.Sleep(5 * time.Millisecond)
	}
	if d.Len() != 4 {
		t.Fatalf("expected root, console, tab and thread registered, got %d", d.Len())
	}
}

func TestRootTabNotFound(t *testing.T) {
	d, w := newTestDispatcher()
	rec := newRecorder()
	NewRootActor(d, RootConfig{Target: "http://localhost/app.html", Listener: rec})
	inject(t, d, `{"from":"root","applicationType":"browser"}`)
	w.expect(t, "root", "listTabs")
	inject(t, d, `{"from":"root","tabs":[{"actor":"tab0","url":"about:blank","consoleActor":"console0"}]}`)
	select {
	case err := <-rec.fatal:
		if !errors.Is(err, schema.ErrTabNotFound) {
			t.Fatalf("expected ErrTabNotFound, got %v", err)
		}
	case <-time.After(waitTimeout):
		t.Fatalf("no fatal error reported")
	}
}

func TestRootWithoutTargetListsTabs(t *testing.T) {
	d, w := newTestDispatcher()
	root := NewRootActor(d, RootConfig{})
	inject(t, d, `{"from":"root","applicationType":"browser"}`)
	select {
	case <-root.Ready():
	case <-time.After(waitTimeout):
		t.Fatalf("root without target should be ready after greeting")
	}
	done := async(func() ([]schema.TabForm, error) {
		return root.ListTabs(context.Background())
	})
	w.expect(t, "root", "listTabs")
	inject(t, d, `{"from":"root","tabs":[{"actor":"tab0","url":"about:blank","title":"New Tab"}]}`)
	tabs, err := await(t, done)
	if err != nil || len(tabs) != 1 || tabs[0].Title != "New Tab" {
		t.Fatalf("ListTabs = %+v, %v", tabs, err)
	}
}

func TestConsoleCategories(t *testing.T) {
	d, _ := newTestDispatcher()
	rec := newRecorder()
	console := NewConsoleActor(d, "console1", rec)
	d.AddActor(console)

	inject(t, d, `{"from":"console1","type":"consoleAPICall","message":{"level":"error","arguments":["boom",42]}}`)
	inject(t, d, `{"from":"console1","type":"consoleAPICall","message":{"level":"warn","arguments":[{"type":"object","class":"Array","actor":"o1"}]}}`)
	inject(t, d, `{"from":"console1","type":"consoleAPICall","message":{"level":"info","arguments":[{"type":"null"}]}}`)
	inject(t, d, `{"from":"console1","type":"pageError","pageError":{"errorMessage":"careful","warning":true}}`)
	if console.ProcessCommand(schema.Packet{From: "console1", Type: "lastPrivateContextExited"}) {
		t.Fatalf("unknown notification must be unhandled")
	}

	outputs, cats, _, _, _ := rec.snapshot()
	wantText := []string{"boom 42\n", "[object Array]\n", "null\n", "careful\n"}
	wantCats := []schema.OutputCategory{schema.OutputStderr, schema.OutputConsole, schema.OutputStdout, schema.OutputConsole}
	if len(outputs) != len(wantText) {
		t.Fatalf("outputs = %q", outputs)
	}
	for i := range wantText {
		if outputs[i] != wantText[i] || cats[i] != wantCats[i] {
			t.Fatalf("output %d = %q/%s, want %q/%s", i, outputs[i], cats[i], wantText[i], wantCats[i])
		}
	}
}

func TestTabIgnoresFrameUpdate(t *testing.T) {
	d, _ := newTestDispatcher()
	tab := NewTabActor(d, "tab1", nil, nil)
	d.AddActor(tab)
	if !tab.ProcessCommand(schema.Packet{From: "tab1", Type: "frameUpdate"}) {
		t.Fatalf("frameUpdate should be accepted")
	}
	if tab.Context() != nil {
		t.Fatalf("frameUpdate must not create a context")
	}
}
