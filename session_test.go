package mogimail

import "testing"

func TestSessionAllowsSequencing(t *testing.T) {
	s := newSession("host", maxRecipients)
	s.state = StateIdle

	if s.Allows(CmdMail) {
		t.Fatal("MAIL should not be allowed before HELO")
	}
	if !s.Allows(CmdHelo) {
		t.Fatal("HELO should be allowed from Idle")
	}

	s.applyHelo("client.local")
	if s.state != StateReady {
		t.Fatalf("got state %v, want Ready", s.state)
	}
	if !s.Allows(CmdMail) {
		t.Fatal("MAIL should be allowed from Ready")
	}
	if s.Allows(CmdRcpt) {
		t.Fatal("RCPT should not be allowed before MAIL")
	}
	if s.Allows(CmdData) {
		t.Fatal("DATA should not be allowed before RCPT")
	}

	s.applyMail("a@x")
	if !s.Allows(CmdRcpt) {
		t.Fatal("RCPT should be allowed from Mail")
	}
	if s.Allows(CmdData) {
		t.Fatal("DATA should not be allowed before any RCPT")
	}

	if err := s.applyRcpt("b@y"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.Allows(CmdData) {
		t.Fatal("DATA should be allowed once a RCPT has been accepted")
	}
}

func TestSessionRsetPreservesHeloDomain(t *testing.T) {
	s := newSession("host", maxRecipients)
	s.state = StateIdle
	s.applyHelo("client.local")
	s.applyMail("a@x")
	_ = s.applyRcpt("b@y")

	s.applyRset()

	if s.state != StateReady {
		t.Fatalf("got state %v, want Ready", s.state)
	}
	if s.heloDomain != "client.local" {
		t.Fatalf("HELO domain not preserved across RSET: %q", s.heloDomain)
	}
	if s.tx.from != nil {
		t.Fatal("reverse-path should be cleared by RSET")
	}
	if len(s.tx.to) != 0 {
		t.Fatal("forward-path list should be cleared by RSET")
	}
}

func TestSessionRsetBeforeHeloStaysIdle(t *testing.T) {
	s := newSession("host", maxRecipients)
	s.state = StateIdle

	s.applyRset()

	if s.state != StateIdle {
		t.Fatalf("got state %v, want Idle", s.state)
	}
}

func TestSessionRecipientCap(t *testing.T) {
	s := newSession("host", maxRecipients)
	s.state = StateIdle
	s.applyHelo("client.local")
	s.applyMail("a@x")

	for i := 0; i < maxRecipients; i++ {
		if err := s.applyRcpt("b@y"); err != nil {
			t.Fatalf("unexpected error at recipient %d: %v", i, err)
		}
	}
	if err := s.applyRcpt("overflow@y"); err != ErrTooManyRecipients {
		t.Fatalf("got %v, want ErrTooManyRecipients", err)
	}
}

func TestSessionFinalizeClearsAndReturnsToReady(t *testing.T) {
	s := newSession("host", maxRecipients)
	s.state = StateIdle
	s.applyHelo("client.local")
	s.applyMail("a@x")
	_ = s.applyRcpt("b@y")
	s.tx.appendData([]byte("hello\r\n"))

	msg := s.finalize()

	if msg.From != "a@x" || len(msg.To) != 1 || msg.To[0] != "b@y" || string(msg.Data) != "hello\r\n" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if s.state != StateReady {
		t.Fatalf("got state %v, want Ready", s.state)
	}
	if s.tx.from != nil || len(s.tx.to) != 0 || len(s.tx.data) != 0 {
		t.Fatal("transaction buffers should be cleared after finalize")
	}
}

func TestSessionNullSenderDistinguishable(t *testing.T) {
	s := newSession("host", maxRecipients)
	s.state = StateIdle
	s.applyHelo("client.local")

	if s.tx.from != nil {
		t.Fatal("reverse-path should be absent before MAIL")
	}

	s.applyMail("")
	if s.tx.from == nil || *s.tx.from != "" {
		t.Fatal("null sender should be present but empty after MAIL FROM:<>")
	}
}
