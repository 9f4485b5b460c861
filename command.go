package mogimail

import (
	"strings"

	"github.com/mogimail/mogimail/utils"
)

// Command identifies one of the seven verbs the minimum-implementation
// subset recognizes (spec.md §4.3).
type Command string

const (
	CmdHelo Command = "HELO"
	CmdMail Command = "MAIL"
	CmdRcpt Command = "RCPT"
	CmdData Command = "DATA"
	CmdRset Command = "RSET"
	CmdNoop Command = "NOOP"
	CmdQuit Command = "QUIT"
)

// maxPathLength is the cap on a MAIL/RCPT path string including the angle
// brackets (spec.md §4.3).
const maxPathLength = 256

// maxDomainLength is the cap on a HELO domain argument (spec.md §4.3).
const maxDomainLength = 64

// parseCommand splits a command line into its verb and the raw argument
// text. It reports ErrMalformedVerb when the verb isn't exactly four ASCII
// letters, and ErrUnknownCommand when it is four letters but not one of the
// seven recognized verbs.
func parseCommand(line string) (Command, string, error) {
	verb, rest, found := strings.Cut(line, " ")
	if !found {
		verb, rest = line, ""
	}

	if !isCommandWord(verb) {
		return "", "", ErrMalformedVerb
	}

	switch strings.ToUpper(verb) {
	case string(CmdHelo):
		return CmdHelo, strings.TrimSpace(rest), nil
	case string(CmdMail):
		return CmdMail, strings.TrimSpace(rest), nil
	case string(CmdRcpt):
		return CmdRcpt, strings.TrimSpace(rest), nil
	case string(CmdData):
		return CmdData, strings.TrimSpace(rest), nil
	case string(CmdRset):
		return CmdRset, strings.TrimSpace(rest), nil
	case string(CmdNoop):
		return CmdNoop, strings.TrimSpace(rest), nil
	case string(CmdQuit):
		return CmdQuit, strings.TrimSpace(rest), nil
	default:
		return "", "", ErrUnknownCommand
	}
}

// isCommandWord reports whether verb is exactly four ASCII alphabetic
// characters, per spec.md §4.3.
func isCommandWord(verb string) bool {
	if len(verb) != 4 {
		return false
	}
	for _, c := range verb {
		if !((c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')) {
			return false
		}
	}
	return true
}

// parsePath parses a `LITERAL:<mailbox>` argument (e.g. "FROM:<a@x>" or
// "TO:<b@y>") and returns the mailbox's interior text. literal is matched
// case-insensitively. An empty `<>` path returns ("", true).
func parsePath(args, literal string) (mailbox string, ok bool) {
	if len(args) < len(literal) || !strings.EqualFold(args[:len(literal)], literal) {
		return "", false
	}
	rest := args[len(literal):]
	if len(rest) > maxPathLength {
		return "", false
	}
	if !strings.HasPrefix(rest, "<") || !strings.HasSuffix(rest, ">") {
		return "", false
	}
	return rest[1 : len(rest)-1], true
}

// isSourceRouted reports whether a forward-path mailbox requests relaying
// via a source route: "@host,@host:mailbox" (spec.md §4.3, GLOSSARY).
func isSourceRouted(mailbox string) bool {
	return strings.HasPrefix(mailbox, "@") && strings.Contains(mailbox, ":")
}

// validHeloDomain reports whether a HELO argument satisfies spec.md §4.3:
// non-empty, at most 64 bytes, no embedded whitespace, syntactically valid.
func validHeloDomain(domain string) bool {
	if domain == "" || len(domain) > maxDomainLength {
		return false
	}
	return utils.ValidDomain(domain)
}
