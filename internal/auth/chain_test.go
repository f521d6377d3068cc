package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/voltbench/ocpp-sim/internal/ocpp"
	v16 "github.com/voltbench/ocpp-sim/internal/ocpp/v16"
	v201 "github.com/voltbench/ocpp-sim/internal/ocpp/v201"
)

type fakeRemote struct {
	mu     sync.Mutex
	online bool
	result *Result
	err    error
	calls  int
}

func (f *fakeRemote) Online() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online
}

func (f *fakeRemote) AuthorizeRemote(_ context.Context, _ *Request) (*Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func req(value string) *Request {
	return &Request{
		Identifier: Identifier{Type: TypeIdTag, Value: value, Version: ocpp.V16},
	}
}

func enabled() bool  { return true }
func disabled() bool { return false }

func TestChain_InvalidIdentifierShortCircuits(t *testing.T) {
	remote := &fakeRemote{online: true, result: &Result{Status: StatusAccepted}}
	chain := NewChain(zap.NewNop(), NewRemoteStrategy(remote, nil, nil, zap.NewNop()))

	res := chain.Authorize(context.Background(), req(""))
	if res.Status != StatusInvalid {
		t.Errorf("empty identifier must be invalid, got %s", res.Status)
	}
	res = chain.Authorize(context.Background(), req(strings.Repeat("A", 21)))
	if res.Status != StatusInvalid {
		t.Errorf("21-char 1.6 idTag must be invalid, got %s", res.Status)
	}
	if remote.calls != 0 {
		t.Errorf("validation failures must not reach the wire, saw %d calls", remote.calls)
	}

	// The 2.0.1 cap is 36.
	long := &Request{Identifier: Identifier{
		Type: TypeISO14443, Value: strings.Repeat("A", 36), Version: ocpp.V201,
	}}
	remote.online = true
	res = chain.Authorize(context.Background(), long)
	if res.Status != StatusAccepted {
		t.Errorf("36-char 2.0.1 token must pass validation, got %s", res.Status)
	}
}

func TestChain_LocalListWinsOverRemote(t *testing.T) {
	remote := &fakeRemote{online: true, result: &Result{Status: StatusBlocked}}
	local := NewLocalListStrategy(enabled)
	local.Put("TAG-1", ListEntry{Status: StatusAccepted})
	chain := NewChain(zap.NewNop(),
		NewRemoteStrategy(remote, nil, nil, zap.NewNop()),
		local, // registration order must not matter
	)

	res := chain.Authorize(context.Background(), req("TAG-1"))
	if res.Status != StatusAccepted || res.Method != "local-list" {
		t.Errorf("expected local-list acceptance, got %s via %s", res.Status, res.Method)
	}
	if remote.calls != 0 {
		t.Errorf("remote must not be consulted, saw %d calls", remote.calls)
	}
}

func TestChain_DisabledLocalListFallsThrough(t *testing.T) {
	remote := &fakeRemote{online: true, result: &Result{Status: StatusAccepted}}
	local := NewLocalListStrategy(disabled)
	local.Put("TAG-1", ListEntry{Status: StatusBlocked})
	chain := NewChain(zap.NewNop(),
		local,
		NewRemoteStrategy(remote, nil, nil, zap.NewNop()),
	)

	res := chain.Authorize(context.Background(), req("TAG-1"))
	if res.Status != StatusAccepted || res.Method != "remote" {
		t.Errorf("expected remote decision, got %s via %s", res.Status, res.Method)
	}
}

func TestChain_AllAbstainYieldsUnknown(t *testing.T) {
	local := NewLocalListStrategy(enabled)
	chain := NewChain(zap.NewNop(), local)
	res := chain.Authorize(context.Background(), req("STRANGER"))
	if res.Status != StatusUnknown || res.Method != "none" {
		t.Errorf("expected UNKNOWN/none, got %s via %s", res.Status, res.Method)
	}
}

func TestLocalList_ExpiredEntry(t *testing.T) {
	local := NewLocalListStrategy(enabled)
	local.Put("TAG-1", ListEntry{
		Status:    StatusAccepted,
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	res, err := local.Authorize(context.Background(), req("TAG-1"))
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if res.Status != StatusExpired {
		t.Errorf("expected EXPIRED, got %s", res.Status)
	}
}

func TestCache_TTLAndInvalidate(t *testing.T) {
	c := NewCache(time.Hour)
	c.Put("TAG-1", Result{Status: StatusAccepted})
	if res, ok := c.Get("TAG-1"); !ok || res.Status != StatusAccepted {
		t.Fatal("fresh entry must be served")
	}

	// A result's own TTL overrides the cache default.
	c.Put("TAG-2", Result{Status: StatusAccepted, CacheTTL: time.Nanosecond})
	time.Sleep(time.Millisecond)
	if _, ok := c.Get("TAG-2"); ok {
		t.Error("entry past its TTL must not be served")
	}

	c.Invalidate("TAG-1")
	if _, ok := c.Get("TAG-1"); ok {
		t.Error("invalidated entry must not be served")
	}

	c.Put("TAG-3", Result{Status: StatusAccepted, CacheTTL: time.Nanosecond})
	c.Put("TAG-4", Result{Status: StatusAccepted})
	time.Sleep(time.Millisecond)
	if dropped := c.Sweep(); dropped != 1 {
		t.Errorf("expected 1 swept entry, got %d", dropped)
	}
	c.Clear()
	if _, ok := c.Get("TAG-4"); ok {
		t.Error("cleared cache must be empty")
	}
}

func TestRemoteStrategy_CachesSuccess(t *testing.T) {
	cache := NewCache(time.Hour)
	remote := &fakeRemote{online: true, result: &Result{Status: StatusAccepted}}
	chain := NewChain(zap.NewNop(),
		NewCacheStrategy(enabled, cache),
		NewRemoteStrategy(remote, nil, cache, zap.NewNop()),
	)

	for i := 0; i < 3; i++ {
		res := chain.Authorize(context.Background(), req("TAG-1"))
		if res.Status != StatusAccepted {
			t.Fatalf("round %d: expected accepted, got %s", i, res.Status)
		}
	}
	if remote.calls != 1 {
		t.Errorf("after the first round trip the cache must answer, saw %d remote calls", remote.calls)
	}
}

func TestRemoteStrategy_OfflineSemantics(t *testing.T) {
	// allowOffline=false: offline requests are rejected outright.
	remote := &fakeRemote{online: false}
	strict := NewRemoteStrategy(remote, disabled, nil, zap.NewNop())
	if !strict.CanHandle(req("TAG-1")) {
		t.Fatal("strict offline strategy must handle (and reject)")
	}
	res, err := strict.Authorize(context.Background(), req("TAG-1"))
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if res.Status != StatusInvalid || !res.IsOffline {
		t.Errorf("expected offline rejection, got %+v", res)
	}

	// allowOffline=true: the strategy abstains so the chain can fall through
	// to an UNKNOWN that the station may treat permissively.
	lenient := NewRemoteStrategy(remote, enabled, nil, zap.NewNop())
	if lenient.CanHandle(req("TAG-1")) {
		t.Error("lenient offline strategy must abstain via CanHandle")
	}
}

type failingStrategy struct{}

func (failingStrategy) Name() string               { return "failing" }
func (failingStrategy) Priority() int              { return 5 }
func (failingStrategy) CanHandle(_ *Request) bool  { return true }
func (failingStrategy) Authorize(_ context.Context, _ *Request) (*Result, error) {
	return nil, errors.New("boom")
}

func TestChain_StrategyErrorContinuesWalk(t *testing.T) {
	cache := NewCache(time.Hour)
	cache.Put("TAG-1", Result{Status: StatusAccepted})
	chain := NewChain(zap.NewNop(),
		NewCacheStrategy(enabled, cache),
		failingStrategy{}, // lower priority, consulted first, errors out
	)
	res := chain.Authorize(context.Background(), req("TAG-1"))
	if res.Status != StatusAccepted || res.Method != "cache" {
		t.Errorf("expected cache fallback after strategy error, got %s via %s", res.Status, res.Method)
	}
}

type fakeCertProvider struct {
	status Status
	calls  int
}

func (f *fakeCertProvider) ValidateCertificate(_ context.Context, _ string) (Status, error) {
	f.calls++
	return f.status, nil
}

func TestCertificateStrategy_EngagesOnCertificate(t *testing.T) {
	provider := &fakeCertProvider{status: StatusAccepted}
	chain := NewChain(zap.NewNop(),
		NewLocalListStrategy(enabled),
		NewCertificateStrategy(provider),
	)

	withCert := req("EMAID-1")
	withCert.Certificate = "-----BEGIN CERTIFICATE-----\nMIIB\n-----END CERTIFICATE-----"
	res := chain.Authorize(context.Background(), withCert)
	if res.Status != StatusAccepted || res.Method != "certificate" {
		t.Errorf("expected certificate acceptance, got %s via %s", res.Status, res.Method)
	}
	if provider.calls != 1 {
		t.Errorf("provider must be consulted exactly once, saw %d calls", provider.calls)
	}

	// Without a certificate on the request the strategy abstains.
	res = chain.Authorize(context.Background(), req("EMAID-1"))
	if res.Method == "certificate" {
		t.Error("certificate strategy must not handle plain token requests")
	}
	if provider.calls != 1 {
		t.Errorf("provider consulted for a token-only request, saw %d calls", provider.calls)
	}
}

func TestCertificateStrategy_NilProviderAbstains(t *testing.T) {
	strategy := NewCertificateStrategy(nil)
	withCert := req("EMAID-1")
	withCert.Certificate = "PEM"
	if strategy.CanHandle(withCert) {
		t.Error("strategy without a provider must abstain")
	}

	chain := NewChain(zap.NewNop(), strategy)
	res := chain.Authorize(context.Background(), withCert)
	if res.Status != StatusUnknown || res.Method != "none" {
		t.Errorf("expected UNKNOWN/none, got %s via %s", res.Status, res.Method)
	}
}

func TestAdapters_RoundTrip16(t *testing.T) {
	res := FromIdTagInfo16(v16.IdTagInfo{
		Status:      v16.AuthorizationAccepted,
		ParentIdTag: "PARENT",
		ExpiryDate:  time.Now().Add(time.Hour).Format(time.RFC3339),
	})
	if res.Status != StatusAccepted || res.ParentId != "PARENT" {
		t.Errorf("unexpected mapped result %+v", res)
	}
	if res.ExpiresAt.IsZero() {
		t.Error("expiry date must be carried over")
	}
	if got := FromIdTagInfo16(v16.IdTagInfo{Status: v16.AuthorizationBlocked}); got.Status != StatusBlocked {
		t.Errorf("Blocked not mapped: %s", got.Status)
	}
	if got := FromIdTagInfo16(v16.IdTagInfo{Status: "SomethingNew"}); got.Status != StatusInvalid {
		t.Errorf("unknown 1.6 status must map to INVALID, got %s", got.Status)
	}
	if got := ToStatus16(StatusNoCredit); got != v16.AuthorizationInvalid {
		t.Errorf("2.0.1-only statuses must degrade to Invalid, got %s", got)
	}
}

func TestAdapters_IdToken201Mapping(t *testing.T) {
	id := Identifier{Type: TypeISO14443, Value: "CARD-1", Version: ocpp.V201}
	tok := ToIdToken201(id)
	if tok.IdToken != "CARD-1" || tok.Type != v201.IdTokenISO14443 {
		t.Errorf("unexpected token %+v", tok)
	}
	back := FromIdToken201(tok)
	if back.Type != TypeISO14443 || back.Value != "CARD-1" {
		t.Errorf("round trip lost fields: %+v", back)
	}
	// 1.6-style idTags land on Local for the 2.0.1 wire.
	if got := ToIdToken201(Identifier{Type: TypeIdTag, Value: "TAG"}); got.Type != v201.IdTokenLocal {
		t.Errorf("idTag must map to Local, got %s", got.Type)
	}
}
