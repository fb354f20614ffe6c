package types

import "signalcode-go/errcode"

// ---- Control replies ----

type OKReply struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type ErrorReply struct {
	OK    bool   `json:"ok"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

// Ok wraps data in a successful reply.
func Ok(data any) OKReply { return OKReply{OK: true, Data: data} }

// Fail converts err to an ErrorReply carrying its stable code.
func Fail(err error) ErrorReply {
	return ErrorReply{OK: false, Code: string(errcode.Of(err)), Error: err.Error()}
}
