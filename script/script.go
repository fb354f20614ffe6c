// Package script drives the signal service over the bus with short text
// commands, one per line. It backs simulator scripts, the TUI command line
// and the firmware console.
//
//	sense <movement>                       raise a request
//	tick [n]                               step n ticks (manual clock only)
//	reset                                  back to AllRed
//	snapshot                               print the current state
//	expect state <Phase> [clearing|steady]
//	expect color <primary|secondary> <Color>
//	sleep <duration>
package script

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"

	"signalcode-go/bus"
	"signalcode-go/errcode"
	"signalcode-go/services/signal"
	"signalcode-go/types"
)

// DefaultTimeout bounds each control request.
const DefaultTimeout = 2 * time.Second

// LineError ties a failure to its script line.
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %s: %v", e.Line, e.Text, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

type Runner struct {
	conn    *bus.Connection
	Timeout time.Duration
	// Out receives the result of every executed line during Run; nil discards.
	Out io.Writer
}

func New(conn *bus.Connection) *Runner {
	return &Runner{conn: conn, Timeout: DefaultTimeout}
}

// Run executes src line by line and stops at the first failure.
func (r *Runner) Run(ctx context.Context, src io.Reader) error {
	sc := bufio.NewScanner(src)
	n := 0
	for sc.Scan() {
		n++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		res, err := r.Exec(ctx, text)
		if err != nil {
			return &LineError{Line: n, Text: text, Err: err}
		}
		if r.Out != nil && res != "" {
			fmt.Fprintf(r.Out, "%d: %s\n", n, res)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	return nil
}

// Exec runs one command line and returns a one-line result.
func (r *Runner) Exec(ctx context.Context, line string) (string, error) {
	args, err := shlex.Split(line)
	if err != nil {
		return "", &errcode.E{C: errcode.InvalidParams, Op: "script.parse", Err: err}
	}
	if len(args) == 0 {
		return "", nil
	}
	verb, args := args[0], args[1:]
	switch verb {
	case "sense":
		if len(args) != 1 {
			return "", usage("sense <movement>")
		}
		m, err := types.ParseMovement(args[0])
		if err != nil {
			return "", err
		}
		var res struct {
			Pending uint8 `json:"pending"`
		}
		if err := r.call(ctx, "sense", types.SenseRequest{Movement: m.String()}, &res); err != nil {
			return "", err
		}
		return fmt.Sprintf("pending=%04b", res.Pending), nil

	case "tick":
		n := 1
		if len(args) > 1 {
			return "", usage("tick [n]")
		}
		if len(args) == 1 {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return "", usage("tick [n]")
			}
			n = v
		}
		var st types.SignalState
		if err := r.call(ctx, "tick", types.TickRequest{N: n}, &st); err != nil {
			return "", err
		}
		return Describe(st), nil

	case "reset":
		var st types.SignalState
		if err := r.call(ctx, "reset", nil, &st); err != nil {
			return "", err
		}
		return Describe(st), nil

	case "snapshot":
		st, err := r.Snapshot(ctx)
		if err != nil {
			return "", err
		}
		return Describe(st), nil

	case "expect":
		return "", r.expect(ctx, args)

	case "sleep":
		if len(args) != 1 {
			return "", usage("sleep <duration>")
		}
		d, err := time.ParseDuration(args[0])
		if err != nil || d < 0 {
			return "", usage("sleep <duration>")
		}
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-t.C:
		}
		return "", nil
	}
	return "", &errcode.E{C: errcode.InvalidParams, Op: "script", Msg: "unknown verb " + strconv.Quote(verb)}
}

func (r *Runner) expect(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usage("expect state|color ...")
	}
	st, err := r.Snapshot(ctx)
	if err != nil {
		return err
	}
	switch args[0] {
	case "state":
		if len(args) > 3 {
			return usage("expect state <Phase> [clearing|steady]")
		}
		want, err := types.ParsePhase(args[1])
		if err != nil {
			return err
		}
		if st.Phase != want {
			return mismatch("state", want.String(), st.Phase.String())
		}
		if len(args) == 3 {
			switch args[2] {
			case "clearing", "steady":
				if got := stage(st); got != args[2] {
					return mismatch("stage", args[2], got)
				}
			default:
				return usage("expect state <Phase> [clearing|steady]")
			}
		}
		return nil
	case "color", "colour":
		if len(args) != 3 {
			return usage("expect color <primary|secondary> <Color>")
		}
		g, err := types.ParseGroup(args[1])
		if err != nil {
			return err
		}
		want, err := types.ParseColor(strings.ToLower(args[2]))
		if err != nil {
			return err
		}
		got := st.Primary
		if g == types.GroupSecondary {
			got = st.Secondary
		}
		if got != want {
			return mismatch(g.String()+" color", want.String(), got.String())
		}
		return nil
	}
	return usage("expect state|color ...")
}

// Snapshot fetches the current signal state.
func (r *Runner) Snapshot(ctx context.Context) (types.SignalState, error) {
	var st types.SignalState
	err := r.call(ctx, "snapshot", nil, &st)
	return st, err
}

// call performs one control request and decodes its reply data into out.
func (r *Runner) call(ctx context.Context, verb string, payload, out any) error {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rep, err := r.conn.RequestWait(ctx, r.conn.NewMessage(signal.ControlTopic(verb), payload, false))
	if err != nil {
		return &errcode.E{C: errcode.Timeout, Op: "script." + verb, Err: err}
	}
	switch v := rep.Payload.(type) {
	case types.ErrorReply:
		return &errcode.E{C: errcode.Code(v.Code), Op: "script." + verb, Msg: v.Error}
	case types.OKReply:
		return decode(v.Data, out)
	default:
		// Replies that crossed a serialising link arrive as generic JSON.
		var generic struct {
			OK    bool            `json:"ok"`
			Code  string          `json:"code"`
			Error string          `json:"error"`
			Data  json.RawMessage `json:"data"`
		}
		if err := decode(v, &generic); err != nil {
			return err
		}
		if !generic.OK {
			return &errcode.E{C: errcode.Code(generic.Code), Op: "script." + verb, Msg: generic.Error}
		}
		if len(generic.Data) == 0 {
			return nil
		}
		return decode(generic.Data, out)
	}
}

func decode(src, dst any) error {
	if dst == nil || src == nil {
		return nil
	}
	var b []byte
	switch v := src.(type) {
	case json.RawMessage:
		b = v
	case []byte:
		b = v
	default:
		var err error
		if b, err = json.Marshal(v); err != nil {
			return &errcode.E{C: errcode.InvalidPayload, Op: "script.decode", Err: err}
		}
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return &errcode.E{C: errcode.InvalidPayload, Op: "script.decode", Err: err}
	}
	return nil
}

// Describe renders a state as one line.
func Describe(st types.SignalState) string {
	return fmt.Sprintf("tick=%d %s %s primary=%s secondary=%s pending=%04b",
		st.Tick, st.Phase, stage(st), st.Primary, st.Secondary, st.Pending)
}

func stage(st types.SignalState) string {
	if st.Clearing {
		return "clearing"
	}
	return "steady"
}

func usage(s string) error {
	return &errcode.E{C: errcode.InvalidParams, Op: "script", Msg: "usage: " + s}
}

func mismatch(what, want, got string) error {
	return &errcode.E{C: errcode.ExpectFailed, Op: "expect", Msg: what + " is " + got + ", want " + want}
}
