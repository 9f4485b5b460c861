package mogimail

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	smtpio "github.com/mogimail/mogimail/io"
)

// maxCommandLineLength caps a command line including its CRLF (spec.md §4.2).
const maxCommandLineLength = 512

// maxDataLineLength caps a DATA-phase line including its CRLF (spec.md §4.2).
const maxDataLineLength = 1000

// dataTerminator is the line that ends the DATA phase (spec.md §4.5).
const dataTerminator = "."

// engine drives one TCP connection's SMTP conversation from greeting to
// QUIT (spec.md §4.5). It owns the Session, reads command and DATA lines
// through the shared line reader, and writes replies through the reply
// codec.
type engine struct {
	conn    net.Conn
	r       *bufio.Reader
	w       io.Writer
	session *Session
	sink    Sink
	limits  Limits
	log     *slog.Logger

	// traceID is the connection's sortable unique ID (SPEC_FULL.md §2,
	// ambient stack "IDs"), surfaced in the greeting banner and carried
	// on every log line via the child logger the acceptor attaches.
	traceID string

	// readTimeout bounds each line read when non-zero (spec.md §5 leaves
	// this to the embedder; Server wires ServerConfig.ReadTimeout here
	// when WithReadTimeout was used).
	readTimeout time.Duration
}

// readLine applies the configured read deadline, if any, then reads one
// line up to max bytes.
func (e *engine) readLine(max int) (string, error) {
	if e.readTimeout > 0 {
		e.conn.SetReadDeadline(time.Now().Add(e.readTimeout))
	}
	return smtpio.ReadLine(e.r, max)
}

func newEngine(conn net.Conn, hostname string, sink Sink, limits Limits, log *slog.Logger, traceID string) *engine {
	return &engine{
		conn:    conn,
		r:       bufio.NewReader(conn),
		w:       conn,
		session: newSession(hostname, limits.MaxRecipients),
		sink:    sink,
		limits:  limits,
		log:     log,
		traceID: traceID,
	}
}

// run drives the session to completion: greeting, command loop, and
// socket close. It returns only once the connection is done.
func (e *engine) run() {
	defer e.conn.Close()

	if !e.greet() {
		return
	}

	for e.session.state != StateClosed {
		line, err := e.readLine(maxCommandLineLength)
		if err != nil {
			if !e.handleReadError(err) {
				return
			}
			continue
		}
		if !e.handleLine(line) {
			return
		}
	}
}

// greet sends the initial 220 banner and moves the session to Idle
// (spec.md §4.5: "On entering Greet it immediately emits 220 ... and
// moves to Idle").
func (e *engine) greet() bool {
	resp := Response{Code: CodeServiceReady, Message: fmt.Sprintf("%s Service ready [%s]", e.session.hostname, e.traceID)}
	if !e.reply(resp) {
		return false
	}
	e.session.state = StateIdle
	return true
}

// handleReadError maps a line-reader failure to client-visible behavior and
// reports whether the session continues. ErrLineTooLong gets a 500 reply and
// the session continues; any other error (EOF, I/O failure) silently
// discards the session (spec.md §4.2, §4.5 "Connection closure", §7 "I/O").
func (e *engine) handleReadError(err error) bool {
	if errors.Is(err, smtpio.ErrLineTooLong) {
		return e.reply(Response{Code: CodeSyntaxError, Message: "line too long"})
	}
	e.log.Debug("connection closed", "error", err)
	return false
}

// handleLine parses and dispatches a single command line. It returns false
// when a reply write fails and the connection should be torn down. After
// QUIT's reply the session is in StateClosed, which ends run's loop.
func (e *engine) handleLine(line string) bool {
	cmd, args, err := parseCommand(line)
	if err != nil {
		return e.handleParseError(err)
	}

	if !e.session.Allows(cmd) {
		return e.reply(Response{Code: CodeBadSequence, Message: "bad sequence of commands"})
	}

	switch cmd {
	case CmdHelo:
		return e.handleHelo(args)
	case CmdMail:
		return e.handleMail(args)
	case CmdRcpt:
		return e.handleRcpt(args)
	case CmdData:
		if args != "" {
			return e.reply(Response{Code: CodeSyntaxParamError, Message: "syntax error in parameters"})
		}
		return e.handleData()
	case CmdRset:
		if args != "" {
			return e.reply(Response{Code: CodeSyntaxParamError, Message: "syntax error in parameters"})
		}
		e.session.applyRset()
		return e.reply(Response{Code: CodeOK, Message: "OK"})
	case CmdNoop:
		if args != "" {
			return e.reply(Response{Code: CodeSyntaxParamError, Message: "syntax error in parameters"})
		}
		return e.reply(Response{Code: CodeOK, Message: "OK"})
	case CmdQuit:
		if args != "" {
			return e.reply(Response{Code: CodeSyntaxParamError, Message: "syntax error in parameters"})
		}
		return e.handleQuit()
	default:
		return e.reply(Response{Code: CodeCommandNotImpl, Message: "command not implemented"})
	}
}

func (e *engine) handleParseError(err error) bool {
	switch {
	case errors.Is(err, ErrMalformedVerb):
		return e.reply(Response{Code: CodeSyntaxError, Message: "syntax error, command unrecognized"})
	case errors.Is(err, ErrUnknownCommand):
		return e.reply(Response{Code: CodeCommandNotImpl, Message: "command not implemented"})
	default:
		return e.reply(Response{Code: CodeSyntaxError, Message: "syntax error"})
	}
}

// handleHelo validates the domain argument and, on success, accepts the
// greeting and clears the transaction buffers (spec.md §4.3, §4.5).
func (e *engine) handleHelo(args string) bool {
	if args == "" || !validHeloDomain(args) {
		return e.reply(Response{Code: CodeSyntaxParamError, Message: "syntax error in parameters"})
	}
	e.session.applyHelo(args)
	return e.reply(Response{Code: CodeOK, Message: fmt.Sprintf("%s greets %s", e.session.hostname, args)})
}

// handleMail parses the MAIL FROM path and, on success, opens a new
// transaction (spec.md §4.3, §4.5).
func (e *engine) handleMail(args string) bool {
	mailbox, ok := parsePath(args, "FROM:")
	if !ok {
		return e.reply(Response{Code: CodeSyntaxParamError, Message: "syntax error in parameters"})
	}
	e.session.applyMail(mailbox)
	return e.reply(Response{Code: CodeOK, Message: "OK"})
}

// handleRcpt parses the RCPT TO path, rejects a source-routed path, and
// otherwise appends it to the forward-path list (spec.md §4.3, §4.5).
func (e *engine) handleRcpt(args string) bool {
	mailbox, ok := parsePath(args, "TO:")
	if !ok || mailbox == "" {
		return e.reply(Response{Code: CodeSyntaxParamError, Message: "syntax error in parameters"})
	}
	if isSourceRouted(mailbox) {
		return e.reply(Response{Code: CodeMailboxUnavailable, Message: "relay not supported"})
	}
	if err := e.session.applyRcpt(mailbox); err != nil {
		return e.reply(Response{Code: CodeExceededStorage, Message: "too many recipients"})
	}
	return e.reply(Response{Code: CodeOK, Message: "OK"})
}

// handleQuit clears the transaction buffers, sends the closing reply, and
// moves the session to Closed.
func (e *engine) handleQuit() bool {
	e.session.tx.reset()
	e.session.state = StateClosed
	return e.reply(Response{Code: CodeServiceClosing, Message: "Service closing transmission channel"})
}

// handleData replies 354 and reads the mail-data lines until the
// `.` terminator, finalizing and delivering the Message on success
// (spec.md §4.5 "DATA phase").
func (e *engine) handleData() bool {
	if !e.reply(Response{Code: CodeStartMailInput, Message: "start mail input; end with <CRLF>.<CRLF>"}) {
		return false
	}
	e.session.state = StateData

	var abortErr error
	for {
		line, err := e.readLine(maxDataLineLength)
		if err != nil {
			if errors.Is(err, smtpio.ErrLineTooLong) {
				// Oversized line during DATA: abort but keep reading until the
				// terminator so the connection doesn't desync (spec.md §4.2).
				if abortErr == nil {
					e.session.tx.reset()
					abortErr = err
				}
				continue
			}
			e.log.Debug("connection closed mid-DATA", "error", err)
			return false
		}
		if line == dataTerminator {
			break
		}
		if abortErr != nil {
			continue
		}
		unstuffed := unstuffDotLine(line)
		if e.limits.MaxDataSize > 0 && len(e.session.tx.data)+len(unstuffed)+2 > e.limits.MaxDataSize {
			e.session.tx.reset()
			abortErr = ErrMessageTooLarge
			continue
		}
		e.session.tx.appendData(append([]byte(unstuffed), '\r', '\n'))
	}

	if abortErr != nil {
		e.session.state = StateReady
		return e.reply(Response{Code: abortReplyCode(abortErr), Message: "mail action aborted"})
	}

	msg := e.session.finalize()
	deliver(e.sink, msg)
	return e.reply(Response{Code: CodeOK, Message: "OK"})
}

// abortReplyCode maps a DATA-phase abort cause to its reply code: a
// too-long line is a syntax problem (500), an oversized message is a
// capacity problem (552) (spec.md §4.2, §7 "Capacity").
func abortReplyCode(err error) ReplyCode {
	if errors.Is(err, ErrMessageTooLarge) {
		return CodeExceededStorage
	}
	return CodeSyntaxError
}

// unstuffDotLine strips one leading '.' from a line that starts with it,
// per the DATA-phase transparency rule (spec.md §4.5, GLOSSARY).
func unstuffDotLine(line string) string {
	if len(line) > 0 && line[0] == '.' {
		return line[1:]
	}
	return line
}

// reply formats and writes resp, truncating the message if needed to stay
// within the 512-byte reply cap (spec.md §4.1). It returns false if the
// write failed, signaling the caller to tear down the connection.
func (e *engine) reply(resp Response) bool {
	line := resp.String()
	if len(line)+2 > maxReplyLineLength {
		line = line[:maxReplyLineLength-2]
	}
	if _, err := io.WriteString(e.w, line+"\r\n"); err != nil {
		e.log.Debug("write failed", "error", err)
		return false
	}
	return true
}
