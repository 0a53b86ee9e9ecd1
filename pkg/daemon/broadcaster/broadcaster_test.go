package broadcaster

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenonby/directory-getinfo/pkg/getinfo/scanner"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/types"
)

func receive(t *testing.T, sub *Subscriber) *Event {
	t.Helper()
	select {
	case ev := <-sub.Events:
		return ev
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected event not received")
		return nil
	}
}

func assertNoEvent(t *testing.T, sub *Subscriber) {
	t.Helper()
	select {
	case ev := <-sub.Events:
		t.Fatalf("unexpected event for %q", ev.Path())
	case <-time.After(20 * time.Millisecond):
	}
}

func TestBroadcaster_Subscribe(t *testing.T) {
	b := New()
	defer b.Close()

	sub := b.Subscribe("/tmp/test")
	require.NotNil(t, sub)
	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, "/tmp/test", sub.Root)
	assert.Equal(t, 1, b.SubscriberCount())
}

func TestBroadcaster_DirectoryUnderRoot(t *testing.T) {
	b := New()
	defer b.Close()

	sub := b.Subscribe("/tmp/test")
	b.OnDirectoryInfo(scanner.DirectoryInfo{Path: "/tmp/test/sub", Status: types.StatusReady})

	ev := receive(t, sub)
	assert.Equal(t, EventDirectory, ev.Type)
	assert.Equal(t, "/tmp/test/sub", ev.Path())
	assert.Equal(t, types.StatusReady, ev.Directory.Status)
}

func TestBroadcaster_FiltersByRoot(t *testing.T) {
	b := New()
	defer b.Close()

	sub := b.Subscribe("/tmp/test")
	b.OnDirectoryInfo(scanner.DirectoryInfo{Path: "/tmp/other"})
	b.OnMimeSizes(scanner.MimeSizesInfo{Path: "/tmp/testing"})
	assertNoEvent(t, sub)

	b.OnMimeSizes(scanner.MimeSizesInfo{Path: "/tmp/test"})
	assert.Equal(t, EventMime, receive(t, sub).Type)
}

func TestBroadcaster_EmptyRootAndFailures(t *testing.T) {
	b := New()
	defer b.Close()

	all := b.Subscribe("")
	scoped := b.Subscribe("/somewhere")

	b.OnDirectoryInfo(scanner.DirectoryInfo{Path: "/x"})
	assert.Equal(t, "/x", receive(t, all).Path())
	assertNoEvent(t, scoped)

	b.OnWorkerFailure(errors.New("boom"))
	assert.Equal(t, "boom", receive(t, all).Err)
	assert.Equal(t, EventFailure, receive(t, scoped).Type)
}

func TestBroadcaster_DropsWhenFull(t *testing.T) {
	b := New()
	defer b.Close()

	sub := b.Subscribe("")
	for i := 0; i < DefaultBuffer+5; i++ {
		b.OnDirectoryInfo(scanner.DirectoryInfo{Path: "/x"})
	}
	assert.Equal(t, uint64(5), sub.Dropped())
	assert.Len(t, sub.Events, DefaultBuffer)
}

func TestBroadcaster_Unsubscribe(t *testing.T) {
	b := New()
	defer b.Close()

	sub := b.Subscribe("")
	b.Unsubscribe(sub.ID)

	_, ok := <-sub.Events
	assert.False(t, ok)
	assert.Equal(t, 0, b.SubscriberCount())

	// unknown ids are ignored
	b.Unsubscribe("missing")
}

func TestBroadcaster_Close(t *testing.T) {
	b := New()
	sub := b.Subscribe("")
	b.Close()

	_, ok := <-sub.Events
	assert.False(t, ok)
	assert.Nil(t, b.Subscribe(""))

	// publishing after close is a no-op
	b.OnDirectoryInfo(scanner.DirectoryInfo{Path: "/x"})
	b.Close()
}
