package lead

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-api/internal/model"
	"github.com/sells-group/lead-api/internal/store"
)

// attrStore serves attribution reads from a mutable set of tokens,
// standing in for the third-party script's asynchronous write path.
type attrStore struct {
	store.Store
	mu     sync.Mutex
	tokens model.AttributionTokens
	reads  int

	// landOnRead, when non-zero, makes the certificate appear on that
	// read, simulating the third-party script's write landing mid-poll.
	landOnRead int
	landTokens model.AttributionTokens
}

func (a *attrStore) GetLeadAttribution(_ context.Context, leadID string) (model.AttributionTokens, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reads++
	if a.landOnRead > 0 && a.reads >= a.landOnRead {
		a.tokens = a.landTokens
	}
	return a.tokens, nil
}

func (a *attrStore) readCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reads
}

// drive advances the fake clock through up to maxSleeps polling delays
// until the Await goroutine finishes.
func drive(t *testing.T, clock *clockwork.FakeClock, delay time.Duration, maxSleeps int, done <-chan struct{}) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-done:
			cancel()
		case <-ctx.Done():
		}
	}()
	for i := 0; i < maxSleeps; i++ {
		if err := clock.BlockUntilContext(ctx, 1); err != nil {
			break
		}
		clock.Advance(delay)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("poller did not finish")
	}
}

func TestAwait_CertificateAlreadyPresent(t *testing.T) {
	st := &attrStore{}
	p := NewPoller(st, 10, 500*time.Millisecond, clockwork.NewFakeClock())

	current := model.AttributionTokens{TrustedFormCertURL: "https://cert.trustedform.com/abc"}
	tokens, resolved := p.Await(context.Background(), "l1", current, Requirement{Certificate: true})

	assert.True(t, resolved)
	assert.Equal(t, current, tokens)
	assert.Equal(t, 0, st.readCount(), "no polling when the token arrived synchronously")
}

func TestAwait_NotRequiredSkipsPolling(t *testing.T) {
	st := &attrStore{}
	p := NewPoller(st, 10, 500*time.Millisecond, clockwork.NewFakeClock())

	tokens, resolved := p.Await(context.Background(), "l1", model.AttributionTokens{}, Requirement{})
	assert.True(t, resolved)
	assert.False(t, tokens.HasCertificate())
	assert.Equal(t, 0, st.readCount())
}

func TestAwait_ResolvesWhenCertificateLands(t *testing.T) {
	st := &attrStore{
		landOnRead: 3,
		landTokens: model.AttributionTokens{TrustedFormCertURL: "https://cert.trustedform.com/late"},
	}
	clock := clockwork.NewFakeClock()
	p := NewPoller(st, 10, 500*time.Millisecond, clock)

	done := make(chan struct{})
	var tokens model.AttributionTokens
	var resolved bool
	go func() {
		defer close(done)
		tokens, resolved = p.Await(context.Background(), "l1", model.AttributionTokens{}, Requirement{Certificate: true})
	}()

	drive(t, clock, 500*time.Millisecond, 10, done)

	require.True(t, resolved)
	assert.Equal(t, "https://cert.trustedform.com/late", tokens.TrustedFormCertURL)
	assert.Equal(t, 3, st.readCount(), "loop exits the moment the certificate appears")
}

func TestAwait_ExhaustsWithoutCertificate(t *testing.T) {
	st := &attrStore{}
	clock := clockwork.NewFakeClock()
	p := NewPoller(st, 4, 500*time.Millisecond, clock)

	done := make(chan struct{})
	var tokens model.AttributionTokens
	var resolved bool
	go func() {
		defer close(done)
		tokens, resolved = p.Await(context.Background(), "l1",
			model.AttributionTokens{JornayaLeadID: "jl-1"}, Requirement{Certificate: true})
	}()

	drive(t, clock, 500*time.Millisecond, 4, done)

	assert.False(t, resolved)
	assert.Equal(t, 4, st.readCount())
	assert.Equal(t, "jl-1", tokens.JornayaLeadID, "request-supplied tokens survive exhaustion")
}

func TestAwait_ConsentIDNeverBlocks(t *testing.T) {
	st := &attrStore{tokens: model.AttributionTokens{TrustedFormCertURL: "https://cert.trustedform.com/abc"}}
	clock := clockwork.NewFakeClock()
	p := NewPoller(st, 10, 500*time.Millisecond, clock)

	done := make(chan struct{})
	var resolved bool
	go func() {
		defer close(done)
		_, resolved = p.Await(context.Background(), "l1", model.AttributionTokens{},
			Requirement{Certificate: true, ConsentID: true})
	}()

	drive(t, clock, 500*time.Millisecond, 10, done)

	assert.True(t, resolved, "missing consent id must not prevent resolution")
	assert.Equal(t, 1, st.readCount())
}

func TestRequirementMissingFields(t *testing.T) {
	req := Requirement{Certificate: true, ConsentID: true}

	missing := req.MissingFields(model.AttributionTokens{})
	assert.Equal(t, []string{"trustedFormCertUrl", "jornayaLeadId"}, missing)

	missing = req.MissingFields(model.AttributionTokens{TrustedFormCertURL: "x", JornayaLeadID: "y"})
	assert.Empty(t, missing)
}
