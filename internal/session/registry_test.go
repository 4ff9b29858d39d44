package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveCreatesOnFirstContact(t *testing.T) {
	r := NewRegistry("fia_2026")

	s := r.Resolve("s1")
	assert.Equal(t, "s1", s.ID)
	assert.Equal(t, "fia_2026", s.BaseCollection)
	assert.Equal(t, "fia_2026", s.ActiveCollection())
	assert.Empty(t, s.Transcript)
	assert.Equal(t, 1, r.Len())

	// Second resolve returns the same session, not a new one.
	again := r.Resolve("s1")
	assert.Equal(t, s.CreatedAt, again.CreatedAt)
	assert.Equal(t, 1, r.Len())
}

func TestResolveConcurrentCreatesOneSession(t *testing.T) {
	r := NewRegistry("fia_2026")

	const goroutines = 32
	var wg sync.WaitGroup
	created := make([]time.Time, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			created[i] = r.Resolve("contested").CreatedAt
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, r.Len())
	for i := 1; i < goroutines; i++ {
		assert.Equal(t, created[0], created[i])
	}
}

func TestBindUploadOverwritesPriorBinding(t *testing.T) {
	r := NewRegistry("fia_2026")

	prev := r.BindUpload("s2", "upload_a")
	assert.Empty(t, prev)
	assert.Equal(t, "upload_a", r.Resolve("s2").ActiveCollection())

	// Second upload without reset: single active uploaded collection,
	// the replaced one is handed back for garbage collection.
	prev = r.BindUpload("s2", "upload_b")
	assert.Equal(t, "upload_a", prev)
	assert.Equal(t, "upload_b", r.Resolve("s2").ActiveCollection())
}

func TestResetRevertsToBaseAndClearsTranscript(t *testing.T) {
	r := NewRegistry("fia_2026")
	r.BindUpload("s3", "upload_c")
	r.AppendExchange("s3", "q", "a")

	released := r.Reset("s3")
	assert.Equal(t, "upload_c", released)

	s := r.Resolve("s3")
	assert.Equal(t, "fia_2026", s.ActiveCollection())
	assert.Empty(t, s.Transcript)
}

func TestResetIdempotent(t *testing.T) {
	r := NewRegistry("fia_2026")
	r.BindUpload("s4", "upload_d")
	r.AppendExchange("s4", "q", "a")

	first := r.Reset("s4")
	assert.Equal(t, "upload_d", first)
	afterFirst := r.Resolve("s4")

	second := r.Reset("s4")
	assert.Empty(t, second)
	afterSecond := r.Resolve("s4")

	assert.Equal(t, afterFirst.ActiveCollection(), afterSecond.ActiveCollection())
	assert.Equal(t, afterFirst.Transcript, afterSecond.Transcript)
}

func TestAppendExchangeTrimsTranscript(t *testing.T) {
	r := NewRegistry("fia_2026", WithMaxExchanges(3))

	for i := 0; i < 5; i++ {
		r.AppendExchange("s5", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	s := r.Resolve("s5")
	require.Len(t, s.Transcript, 3)
	assert.Equal(t, "q2", s.Transcript[0].Question)
	assert.Equal(t, "q4", s.Transcript[2].Question)
}

func TestSnapshotDoesNotAliasLiveState(t *testing.T) {
	r := NewRegistry("fia_2026")
	r.AppendExchange("s6", "q0", "a0")

	s := r.Resolve("s6")
	s.Transcript[0].Question = "mutated"

	assert.Equal(t, "q0", r.Resolve("s6").Transcript[0].Question)
}

func TestSessionsAreIndependent(t *testing.T) {
	r := NewRegistry("fia_2026")
	r.BindUpload("a", "upload_a")

	assert.Equal(t, "upload_a", r.Resolve("a").ActiveCollection())
	assert.Equal(t, "fia_2026", r.Resolve("b").ActiveCollection())
}

func TestWithClock(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewRegistry("fia_2026", WithClock(func() time.Time { return fixed }))

	s := r.Resolve("s7")
	assert.Equal(t, fixed, s.CreatedAt)
}
