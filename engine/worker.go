package engine

import (
	"runtime"

	"go.uber.org/zap"

	"github.com/pamgate/pamgate"
	"github.com/pamgate/pamgate/errors"
	"github.com/pamgate/pamgate/loader"
)

// step identifies which native entry point produced a disposition.
type step int

const (
	stepAuthenticate step = iota
	stepAcctMgmt
)

// convState is the per-conversation flag set shared between the conversation
// callback and the disposition handling. Touched only by the worker goroutine.
type convState struct {
	// aborted is set once the bridge has reported a protocol error and
	// closed the pipes; the eventual native disposition is then discarded.
	aborted bool
}

// worker runs conversations one at a time. The goroutine is pinned to its OS
// thread for its whole life: the native transaction handle is thread-affine,
// and PAM modules are not assumed reentrant across threads.
func (e *Engine) worker(id int) {
	defer e.wg.Done()
	runtime.LockOSThread()

	log := Logger().With(zap.Int("worker", id))
	log.Debug("worker parked")
	for t := range e.tasks {
		e.run(log, t)
	}
	log.Debug("worker exiting")
}

// run drives one transaction to a terminal state. Every exit path ends the
// native transaction and closes both pipes, so the conversation always
// terminates deterministically and the worker always returns to the pool.
func (e *Engine) run(log *zap.Logger, t *task) {
	log = log.With(
		zap.Stringer("conversation", t.id),
		zap.String("service", t.service),
		zap.String("user", t.identity),
	)
	defer func() {
		t.messages.Close()
		t.answers.Close()
	}()

	st := &convState{}
	tx, err := e.tr.Start(t.service, t.identity, e.convFunc(log, t, st))
	if err != nil {
		log.Error("failed to start PAM transaction", zap.Error(err))
		_ = t.messages.Send(pamgate.ErrorText(err.Error()), e.cfg.SendTimeout)
		return
	}

	log.Debug("calling pam_authenticate")
	if code := tx.Authenticate(); !code.OK() {
		tx.End(code)
		e.conclude(log, t, st, stepAuthenticate, code)
		return
	}

	log.Debug("calling pam_acct_mgmt")
	if code := tx.AcctMgmt(); !code.OK() {
		tx.End(code)
		e.conclude(log, t, st, stepAcctMgmt, code)
		return
	}

	tx.End(loader.Success)
	log.Debug("authentication successful")
	_ = t.messages.Send(pamgate.Authenticated(), e.cfg.SendTimeout)
}

// conclude translates a negative native disposition into the terminal Message.
// Ordinary denials become AuthenticationFailed/ValidationFailed; anything else
// (conversation error, system error, unknown code) becomes a terminal Error
// carrying the code description.
func (e *Engine) conclude(log *zap.Logger, t *task, st *convState, s step, code loader.Code) {
	if st.aborted {
		// The callback already emitted the Error and closed the pipes.
		log.Debug("conversation abandoned by bridge", zap.Stringer("code", code))
		return
	}

	var msg pamgate.Message
	switch {
	case s == stepAuthenticate && code.AuthDenial():
		log.Debug("authentication failed", zap.Stringer("code", code))
		msg = pamgate.AuthenticationFailed()
	case s == stepAcctMgmt && code.AcctDenial():
		log.Debug("account validation failed", zap.Stringer("code", code))
		msg = pamgate.ValidationFailed()
	default:
		log.Warn("unexpected PAM return code", zap.Stringer("code", code))
		msg = pamgate.ErrorText(e.describe(code))
	}
	_ = t.messages.Send(msg, e.cfg.SendTimeout)
}

// convFunc builds the conversation callback for one transaction. It runs on
// the worker thread, inside the native call; every hand-off is bounded so a
// misbehaving counterpart converts into an abort instead of a hang.
func (e *Engine) convFunc(log *zap.Logger, t *task, st *convState) loader.ConvFunc {
	return func(style loader.Style, text string) (string, bool) {
		switch style {
		case loader.PromptEchoOff, loader.PromptEchoOn:
			msg := pamgate.Echo(text)
			if style == loader.PromptEchoOff {
				msg = pamgate.NoEcho(text)
			}
			if err := t.messages.Send(msg, e.cfg.SendTimeout); err != nil {
				log.Debug("prompt delivery failed, aborting conversation", zap.Error(err))
				e.abort(t, st, err)
				return "", false
			}
			answer, err := t.answers.Recv(e.cfg.ChatTimeout)
			if err != nil {
				log.Debug("no answer from caller, aborting conversation", zap.Error(err))
				e.abort(t, st, err)
				return "", false
			}
			return answer, true

		case loader.ErrorMsg, loader.TextInfo:
			msg := pamgate.Info(text)
			if style == loader.ErrorMsg {
				msg = pamgate.ErrorText(text)
			}
			if err := t.messages.Send(msg, e.cfg.SendTimeout); err != nil {
				if errors.IsClosed(err) {
					// Caller dropped its end: discard and let the module finish.
					return "", true
				}
				log.Debug("message delivery timed out, aborting conversation", zap.Error(err))
				e.abort(t, st, err)
				return "", false
			}
			return "", true

		default:
			log.Warn("unknown PAM message style", zap.Int32("style", int32(style)))
			e.abort(t, st, errors.Native("conversation", int32(style), "unknown message style"))
			return "", false
		}
	}
}

// abort reports a protocol error through the channel and closes it. The native
// call cannot be interrupted; the callback's refusal makes the module unwind
// with PAM_CONV_ERR, bounding the bridge's wait rather than PAM's execution.
func (e *Engine) abort(t *task, st *convState, cause error) {
	st.aborted = true
	_ = t.messages.Send(pamgate.ErrorText(cause.Error()), e.cfg.SendTimeout)
	t.messages.Close()
	t.answers.Close()
}

func (e *Engine) describe(code loader.Code) string {
	if d, ok := e.tr.(loader.Describer); ok {
		return d.Describe(code)
	}
	return code.String()
}
