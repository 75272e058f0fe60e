package engine

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pamgate/pamgate"
	"github.com/pamgate/pamgate/errors"
	"github.com/pamgate/pamgate/loader"
)

// fakeModule is a scripted stand-in for the native capability. The
// authenticate script receives the live conversation callback exactly the way
// a PAM module would.
type fakeModule struct {
	authenticate func(conv loader.ConvFunc) loader.Code
	acctMgmt     loader.Code // zero value is Success
	startErr     error

	mu    sync.Mutex
	ended []loader.Code
}

func (m *fakeModule) Start(service, user string, conv loader.ConvFunc) (loader.Transaction, error) {
	if m.startErr != nil {
		return nil, m.startErr
	}
	return &fakeTx{m: m, conv: conv}, nil
}

func (m *fakeModule) endStatuses() []loader.Code {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]loader.Code(nil), m.ended...)
}

type fakeTx struct {
	m    *fakeModule
	conv loader.ConvFunc
}

func (t *fakeTx) Authenticate() loader.Code {
	if t.m.authenticate == nil {
		return loader.Success
	}
	return t.m.authenticate(t.conv)
}

func (t *fakeTx) AcctMgmt() loader.Code { return t.m.acctMgmt }

func (t *fakeTx) End(status loader.Code) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	t.m.ended = append(t.m.ended, status)
}

// describingModule additionally renders codes, like the real capability does
// through pam_strerror.
type describingModule struct {
	fakeModule
}

func (d *describingModule) Describe(code loader.Code) string {
	return "strerror: " + code.String()
}

// passwordModule scripts the classic single-prompt flow.
func passwordModule(correct string) *fakeModule {
	return &fakeModule{
		authenticate: func(conv loader.ConvFunc) loader.Code {
			reply, ok := conv(loader.PromptEchoOff, "Password:")
			if !ok {
				return loader.ConvErr
			}
			if reply != correct {
				return loader.AuthErr
			}
			return loader.Success
		},
	}
}

func newEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

// begin retries pool-exhausted rejections: right after New or between tasks a
// worker may not have parked yet.
func begin(t *testing.T, e *Engine, service, user string) *pamgate.Conversation {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		conv, err := e.Begin(service, user)
		if err == nil {
			return conv
		}
		if !errors.IsExhausted(err) {
			t.Fatalf("Begin: %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatal("no worker became idle")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func recvKind(t *testing.T, conv *pamgate.Conversation, want pamgate.MessageKind) pamgate.Message {
	t.Helper()
	msg, err := conv.Recv(2 * time.Second)
	if err != nil {
		t.Fatalf("Recv: %v (expected %s)", err, want)
	}
	if msg.Kind != want {
		t.Fatalf("got %s, expected %s", msg, want)
	}
	return msg
}

func recvClosed(t *testing.T, conv *pamgate.Conversation) {
	t.Helper()
	msg, err := conv.Recv(2 * time.Second)
	if err == nil {
		t.Fatalf("expected closed conversation, got message %s", msg)
	}
	if !errors.IsClosed(err) {
		t.Fatalf("expected closed, got %v", err)
	}
}

func TestEngine_PasswordSuccess(t *testing.T) {
	mod := passwordModule("correct")
	e := newEngine(t, Config{Transactor: mod})

	conv := begin(t, e, "login", "alice")
	defer conv.Close()

	msg := recvKind(t, conv, pamgate.MsgNoEcho)
	if msg.Text != "Password:" {
		t.Fatalf("unexpected prompt text: %q", msg.Text)
	}
	if err := conv.Answer("correct", time.Second); err != nil {
		t.Fatalf("Answer: %v", err)
	}

	recvKind(t, conv, pamgate.MsgAuthenticated)
	recvClosed(t, conv)

	if got := mod.endStatuses(); len(got) != 1 || got[0] != loader.Success {
		t.Fatalf("expected transaction ended with PAM_SUCCESS, got %v", got)
	}
}

func TestEngine_WrongPassword(t *testing.T) {
	e := newEngine(t, Config{Transactor: passwordModule("correct")})

	conv := begin(t, e, "login", "alice")
	defer conv.Close()

	recvKind(t, conv, pamgate.MsgNoEcho)
	if err := conv.Answer("wrong", time.Second); err != nil {
		t.Fatalf("Answer: %v", err)
	}

	recvKind(t, conv, pamgate.MsgAuthenticationFailed)
	recvClosed(t, conv)
}

// Messages must arrive in exactly the order the module emitted them, with the
// terminal message last.
func TestEngine_MessageOrder(t *testing.T) {
	mod := &fakeModule{
		authenticate: func(conv loader.ConvFunc) loader.Code {
			conv(loader.TextInfo, "Last login: yesterday")
			conv(loader.ErrorMsg, "2 failed attempts")
			name, ok := conv(loader.PromptEchoOn, "login:")
			if !ok || name != "alice" {
				return loader.AuthErr
			}
			conv(loader.TextInfo, "Welcome")
			return loader.Success
		},
	}
	e := newEngine(t, Config{Transactor: mod})

	conv := begin(t, e, "login", "alice")
	defer conv.Close()

	if msg := recvKind(t, conv, pamgate.MsgInfo); msg.Text != "Last login: yesterday" {
		t.Fatalf("unexpected text: %q", msg.Text)
	}
	if msg := recvKind(t, conv, pamgate.MsgError); msg.Text != "2 failed attempts" {
		t.Fatalf("unexpected text: %q", msg.Text)
	}
	recvKind(t, conv, pamgate.MsgEcho)
	if err := conv.Answer("alice", time.Second); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if msg := recvKind(t, conv, pamgate.MsgInfo); msg.Text != "Welcome" {
		t.Fatalf("unexpected text: %q", msg.Text)
	}
	recvKind(t, conv, pamgate.MsgAuthenticated)
	recvClosed(t, conv)
}

func TestEngine_AccountValidationFailure(t *testing.T) {
	mod := passwordModule("correct")
	mod.acctMgmt = loader.AcctExpired
	e := newEngine(t, Config{Transactor: mod})

	conv := begin(t, e, "login", "alice")
	defer conv.Close()

	recvKind(t, conv, pamgate.MsgNoEcho)
	if err := conv.Answer("correct", time.Second); err != nil {
		t.Fatalf("Answer: %v", err)
	}

	recvKind(t, conv, pamgate.MsgValidationFailed)
	recvClosed(t, conv)

	if got := mod.endStatuses(); len(got) != 1 || got[0] != loader.AcctExpired {
		t.Fatalf("expected transaction ended with PAM_ACCT_EXPIRED, got %v", got)
	}
}

// A code that is not an ordinary denial surfaces as a terminal Error message
// carrying the module's description.
func TestEngine_UnexpectedCode(t *testing.T) {
	mod := &describingModule{fakeModule{
		authenticate: func(loader.ConvFunc) loader.Code { return loader.SystemErr },
	}}
	e := newEngine(t, Config{Transactor: mod})

	conv := begin(t, e, "login", "alice")
	defer conv.Close()

	msg := recvKind(t, conv, pamgate.MsgError)
	if msg.Text != "strerror: PAM_SYSTEM_ERR" {
		t.Fatalf("unexpected description: %q", msg.Text)
	}
	recvClosed(t, conv)
}

func TestEngine_StartFailure(t *testing.T) {
	mod := &fakeModule{
		startErr: errors.Native("pam_start", int32(loader.BufErr), "memory buffer error"),
	}
	e := newEngine(t, Config{Transactor: mod})

	conv := begin(t, e, "login", "alice")
	defer conv.Close()

	msg := recvKind(t, conv, pamgate.MsgError)
	if !strings.Contains(msg.Text, "memory buffer error") {
		t.Fatalf("unexpected error text: %q", msg.Text)
	}
	recvClosed(t, conv)
}

// A caller that never answers a prompt trips the chat timeout: the bridge
// emits a terminal Error, closes the conversation, and reclaims the worker.
func TestEngine_AnswerTimeout(t *testing.T) {
	e := newEngine(t, Config{
		Transactor:  passwordModule("correct"),
		ChatTimeout: 50 * time.Millisecond,
	})

	conv := begin(t, e, "login", "alice")
	recvKind(t, conv, pamgate.MsgNoEcho)

	// Never answer. The worker aborts with a timeout error.
	msg := recvKind(t, conv, pamgate.MsgError)
	if !strings.Contains(msg.Text, "timeout") {
		t.Fatalf("expected timeout description, got %q", msg.Text)
	}
	recvClosed(t, conv)
	conv.Close()

	// The worker must be back in the pool: a fresh conversation completes.
	conv2 := begin(t, e, "login", "alice")
	defer conv2.Close()
	recvKind(t, conv2, pamgate.MsgNoEcho)
	if err := conv2.Answer("correct", time.Second); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	recvKind(t, conv2, pamgate.MsgAuthenticated)
}

// With every worker busy, Begin rejects immediately instead of queueing.
func TestEngine_PoolExhausted(t *testing.T) {
	gate := make(chan struct{})
	mod := &fakeModule{
		authenticate: func(loader.ConvFunc) loader.Code {
			<-gate
			return loader.AuthErr
		},
	}
	e := newEngine(t, Config{Transactor: mod, Workers: 1, ShutdownGrace: 50 * time.Millisecond})

	conv := begin(t, e, "login", "alice")
	defer conv.Close()

	_, err := e.Begin("login", "bob")
	if !errors.IsExhausted(err) {
		t.Fatalf("expected pool exhausted, got %v", err)
	}

	close(gate)
	recvKind(t, conv, pamgate.MsgAuthenticationFailed)
}

// A module that hangs without ever invoking the conversation callback stalls
// exactly one worker: the caller's Recv times out and further admissions fail
// fast, but nothing inside the bridge blocks forever.
func TestEngine_HungModule(t *testing.T) {
	gate := make(chan struct{})
	mod := &fakeModule{
		authenticate: func(loader.ConvFunc) loader.Code {
			<-gate
			return loader.AuthErr
		},
	}
	e := newEngine(t, Config{Transactor: mod, Workers: 1, ShutdownGrace: 50 * time.Millisecond})

	conv := begin(t, e, "login", "alice")
	defer conv.Close()

	_, err := conv.Recv(50 * time.Millisecond)
	if !errors.IsTimeout(err) {
		t.Fatalf("expected recv timeout, got %v", err)
	}

	_, err = e.Begin("login", "bob")
	if !errors.IsExhausted(err) {
		t.Fatalf("expected pool exhausted, got %v", err)
	}

	close(gate)
	recvKind(t, conv, pamgate.MsgAuthenticationFailed)
}

// Dropping conversations mid-prompt must not leak workers: a pool of one
// survives a series of abandoned conversations and still completes a real one.
func TestEngine_CallerDropReclaimsWorker(t *testing.T) {
	e := newEngine(t, Config{
		Transactor:  passwordModule("correct"),
		Workers:     1,
		ChatTimeout: 100 * time.Millisecond,
	})

	for i := 0; i < 5; i++ {
		conv := begin(t, e, "login", "alice")
		conv.Close()
	}

	conv := begin(t, e, "login", "alice")
	defer conv.Close()
	recvKind(t, conv, pamgate.MsgNoEcho)
	if err := conv.Answer("correct", time.Second); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	recvKind(t, conv, pamgate.MsgAuthenticated)
}

// A dropped caller must not abort a transaction that only emits
// non-interactive messages: those are discarded and the module finishes.
func TestEngine_CallerDropDiscardsInfo(t *testing.T) {
	done := make(chan loader.Code, 1)
	mod := &fakeModule{
		authenticate: func(conv loader.ConvFunc) loader.Code {
			if _, ok := conv(loader.TextInfo, "processing"); !ok {
				done <- loader.ConvErr
				return loader.ConvErr
			}
			done <- loader.Success
			return loader.Success
		},
	}
	e := newEngine(t, Config{Transactor: mod, Workers: 1})

	conv := begin(t, e, "login", "alice")
	conv.Close()

	select {
	case code := <-done:
		if code != loader.Success {
			t.Fatalf("info delivery to a dropped caller should be discarded, module saw %s", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("module never finished")
	}
}

func TestEngine_BeginAfterClose(t *testing.T) {
	e := newEngine(t, Config{Transactor: &fakeModule{}})

	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	_, err := e.Begin("login", "alice")
	if !errors.IsClosed(err) {
		t.Fatalf("expected closed, got %v", err)
	}
}

// Close waits for busy workers only up to the grace period, then detaches.
func TestEngine_CloseGraceTimeout(t *testing.T) {
	gate := make(chan struct{})
	mod := &fakeModule{
		authenticate: func(loader.ConvFunc) loader.Code {
			<-gate
			return loader.AuthErr
		},
	}
	e := newEngine(t, Config{Transactor: mod, Workers: 1, ShutdownGrace: 50 * time.Millisecond})

	conv := begin(t, e, "login", "alice")
	defer conv.Close()

	err := e.Close()
	if !errors.IsTimeout(err) {
		t.Fatalf("expected shutdown timeout, got %v", err)
	}

	close(gate) // let the detached worker unwind
	recvKind(t, conv, pamgate.MsgAuthenticationFailed)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"negative workers", Config{Workers: -1}},
		{"negative send timeout", Config{SendTimeout: -time.Second}},
		{"negative chat timeout", Config{ChatTimeout: -time.Second}},
		{"negative capacity", Config{Capacity: -4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Transactor = &fakeModule{}
			_, err := New(tt.cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			e, ok := err.(*errors.Error)
			if !ok || e.Kind != errors.KindInvalidConfig {
				t.Fatalf("expected invalid_config, got %v", err)
			}
		})
	}
}

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.Workers != DefaultWorkers {
		t.Errorf("Workers = %d, want %d", cfg.Workers, DefaultWorkers)
	}
	if cfg.SendTimeout != DefaultSendTimeout {
		t.Errorf("SendTimeout = %s, want %s", cfg.SendTimeout, DefaultSendTimeout)
	}
	if cfg.ChatTimeout != DefaultChatTimeout {
		t.Errorf("ChatTimeout = %s, want %s", cfg.ChatTimeout, DefaultChatTimeout)
	}
	if cfg.Capacity != DefaultCapacity {
		t.Errorf("Capacity = %d, want %d", cfg.Capacity, DefaultCapacity)
	}
	if cfg.ShutdownGrace != DefaultShutdownGrace {
		t.Errorf("ShutdownGrace = %s, want %s", cfg.ShutdownGrace, DefaultShutdownGrace)
	}
}
