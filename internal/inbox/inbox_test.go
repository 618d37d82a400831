package inbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"interviewdesk/pkg/kafka"
	"interviewdesk/pkg/logger"

	"github.com/emersion/go-imap"
)

const cancelSubject = "CANCEL INTERVIEW"

const plainMessage = "From: Alice <A@X.com>\r\n" +
	"To: desk@example.com\r\n" +
	"Subject: Re: CANCEL INTERVIEW\r\n" +
	"Date: Fri, 07 Mar 2025 10:00:00 -0500\r\n" +
	"Message-Id: <abc@x.com>\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Date: 2025-03-14\r\n" +
	"Time: 9:00 AM ET\r\n"

const alternativeMessage = "From: b@x.com\r\n" +
	"Subject: CANCEL INTERVIEW\r\n" +
	"Content-Type: multipart/alternative; boundary=XYZ\r\n" +
	"\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>Date: 2025-03-14</p>\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Date: 2025-03-14\r\nTime: 1:00 PM ET\r\n" +
	"--XYZ--\r\n"

func TestParseMessage(t *testing.T) {
	req, err := ParseMessage(strings.NewReader(plainMessage))
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}
	if req.Sender != "A@X.com" {
		t.Errorf("Sender = %q", req.Sender)
	}
	if req.Subject != "Re: CANCEL INTERVIEW" {
		t.Errorf("Subject = %q", req.Subject)
	}
	if !strings.Contains(req.Body, "Time: 9:00 AM ET") {
		t.Errorf("Body = %q", req.Body)
	}
	if req.ReceivedAt.IsZero() {
		t.Error("expected Date header to be parsed")
	}
}

func TestParseMessage_PrefersPlainPart(t *testing.T) {
	req, err := ParseMessage(strings.NewReader(alternativeMessage))
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}
	if strings.Contains(req.Body, "<p>") || !strings.Contains(req.Body, "1:00 PM ET") {
		t.Errorf("Body = %q, want the text/plain part", req.Body)
	}
}

func TestParseMessage_MissingFrom(t *testing.T) {
	raw := "Subject: CANCEL INTERVIEW\r\n\r\nDate: 2025-03-14\r\n"
	if _, err := ParseMessage(strings.NewReader(raw)); err == nil {
		t.Error("expected an error for a message without From")
	}
}

func TestSubjectMatches(t *testing.T) {
	tests := []struct {
		subject string
		want    bool
	}{
		{"CANCEL INTERVIEW", true},
		{"Re: cancel interview please", true},
		{"Interview question", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := SubjectMatches(tt.subject, cancelSubject); got != tt.want {
			t.Errorf("SubjectMatches(%q) = %v, want %v", tt.subject, got, tt.want)
		}
	}
}

type mockMailClient struct {
	messages map[uint32]string

	loginErr  error
	searched  *imap.SearchCriteria
	stored    []uint32
	storeItem imap.StoreItem
	loggedOut int

	// hang makes UidSearch block until Terminate closes the connection.
	hang       bool
	terminated chan struct{}
}

func (m *mockMailClient) Login(username, password string) error { return m.loginErr }

func (m *mockMailClient) Select(name string, readOnly bool) (*imap.MailboxStatus, error) {
	return &imap.MailboxStatus{Name: name}, nil
}

func (m *mockMailClient) UidSearch(criteria *imap.SearchCriteria) ([]uint32, error) {
	m.searched = criteria
	if m.hang {
		<-m.terminated
		return nil, errors.New("imap: connection closed")
	}
	var uids []uint32
	for uid := range m.messages {
		uids = append(uids, uid)
	}
	return uids, nil
}

func (m *mockMailClient) UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error {
	defer close(ch)
	// Servers answer BODY.PEEK[] with BODY[].
	section := &imap.BodySectionName{}
	for uid, raw := range m.messages {
		if !seqset.Contains(uid) {
			continue
		}
		msg := imap.NewMessage(uid, items)
		msg.Uid = uid
		msg.Body = map[*imap.BodySectionName]imap.Literal{
			section: bytes.NewBufferString(raw),
		}
		ch <- msg
	}
	return nil
}

func (m *mockMailClient) UidStore(seqset *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error {
	m.storeItem = item
	for _, set := range seqset.Set {
		m.stored = append(m.stored, set.Start)
	}
	return nil
}

func (m *mockMailClient) Logout() error {
	m.loggedOut++
	return nil
}

func (m *mockMailClient) Terminate() error {
	if m.terminated != nil {
		close(m.terminated)
	}
	return nil
}

func newTestIMAPSource(c *mockMailClient) *IMAPSource {
	s := NewIMAPSource(IMAPConfig{Addr: "imap.example.com:993", Username: "u", Password: "p"}, logger.Discard())
	s.dial = func(context.Context, IMAPConfig) (mailClient, error) { return c, nil }
	return s
}

func TestIMAPSource_ListAndMark(t *testing.T) {
	c := &mockMailClient{messages: map[uint32]string{42: plainMessage}}
	s := newTestIMAPSource(c)

	reqs, err := s.ListUnprocessed(context.Background(), cancelSubject)
	if err != nil {
		t.Fatalf("ListUnprocessed() error = %v", err)
	}
	if len(reqs) != 1 {
		t.Fatalf("got %d requests, want 1", len(reqs))
	}
	if reqs[0].MessageID != "42" || reqs[0].Sender != "A@X.com" {
		t.Errorf("request = %+v", reqs[0])
	}

	if got := c.searched.Header.Get("Subject"); got != cancelSubject {
		t.Errorf("search subject = %q", got)
	}
	if len(c.searched.WithoutFlags) != 1 || c.searched.WithoutFlags[0] != imap.SeenFlag {
		t.Errorf("search flags = %v, want UNSEEN", c.searched.WithoutFlags)
	}

	if err := s.MarkProcessed(context.Background(), "42"); err != nil {
		t.Fatalf("MarkProcessed() error = %v", err)
	}
	if len(c.stored) != 1 || c.stored[0] != 42 {
		t.Errorf("stored = %v", c.stored)
	}
	if c.storeItem != imap.FormatFlagsOp(imap.AddFlags, true) {
		t.Errorf("store item = %s", c.storeItem)
	}

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if c.loggedOut != 1 {
		t.Errorf("logged out %d times, want 1", c.loggedOut)
	}
}

func TestIMAPSource_Errors(t *testing.T) {
	c := &mockMailClient{loginErr: errors.New("bad credentials")}
	s := newTestIMAPSource(c)

	if _, err := s.ListUnprocessed(context.Background(), cancelSubject); err == nil {
		t.Error("expected login failure to be reported")
	}
	if err := s.MarkProcessed(context.Background(), "42"); err == nil {
		t.Error("expected MarkProcessed without a session to fail")
	}
	if err := s.MarkProcessed(context.Background(), "not-a-uid"); !errors.Is(err, ErrUnknownMessage) {
		t.Errorf("MarkProcessed() error = %v, want ErrUnknownMessage", err)
	}
}

func TestIMAPSource_ListingBoundedByContext(t *testing.T) {
	c := &mockMailClient{hang: true, terminated: make(chan struct{})}
	s := newTestIMAPSource(c)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := s.ListUnprocessed(ctx, cancelSubject)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("ListUnprocessed() error = %v, want DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("listing took %v after the deadline", elapsed)
	}
	select {
	case <-c.terminated:
	default:
		t.Error("connection was not terminated")
	}
	if err := s.MarkProcessed(context.Background(), "42"); err == nil {
		t.Error("MarkProcessed on a terminated session should fail")
	}
}

type mockPoller struct {
	batch     []kafka.Message
	pollErr   error
	commitErr error
	committed []string
	closed    bool
}

func (m *mockPoller) Poll(ctx context.Context) ([]kafka.Message, error) {
	batch := m.batch
	m.batch = nil
	return batch, m.pollErr
}

func (m *mockPoller) Commit(ctx context.Context, msg kafka.Message) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	m.committed = append(m.committed, msg.ID())
	return nil
}

func (m *mockPoller) Close() error {
	m.closed = true
	return nil
}

func inboundRecord(t *testing.T, offset int64, ev inboundEvent) kafka.Message {
	t.Helper()
	value, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	return kafka.Message{Topic: "inbound-mail", Offset: offset, Value: value}
}

func TestKafkaSource_FiltersAndCommitsOnMark(t *testing.T) {
	p := &mockPoller{batch: []kafka.Message{
		inboundRecord(t, 1, inboundEvent{From: "a@x.com", Subject: "CANCEL INTERVIEW", Body: "Date: 2025-03-14"}),
		inboundRecord(t, 2, inboundEvent{From: "c@x.com", Subject: "hello"}),
		{Topic: "inbound-mail", Offset: 3, Value: []byte("not json")},
	}}
	s := NewKafkaSource(p, logger.Discard())

	reqs, err := s.ListUnprocessed(context.Background(), cancelSubject)
	if err != nil {
		t.Fatalf("ListUnprocessed() error = %v", err)
	}
	if len(reqs) != 1 || reqs[0].Sender != "a@x.com" {
		t.Fatalf("requests = %+v", reqs)
	}
	if len(p.committed) != 2 {
		t.Errorf("committed %v, want the two skipped records", p.committed)
	}

	if err := s.MarkProcessed(context.Background(), reqs[0].MessageID); err != nil {
		t.Fatalf("MarkProcessed() error = %v", err)
	}
	if p.committed[len(p.committed)-1] != "inbound-mail/0/1" {
		t.Errorf("last commit = %s", p.committed[len(p.committed)-1])
	}
	if err := s.MarkProcessed(context.Background(), reqs[0].MessageID); !errors.Is(err, ErrUnknownMessage) {
		t.Errorf("second MarkProcessed() error = %v, want ErrUnknownMessage", err)
	}

	if err := s.Close(); err != nil || !p.closed {
		t.Errorf("Close() = %v, closed = %v", err, p.closed)
	}
}

func TestKafkaSource_DeadlineIsEmptyPass(t *testing.T) {
	p := &mockPoller{pollErr: context.DeadlineExceeded}
	s := NewKafkaSource(p, logger.Discard())

	reqs, err := s.ListUnprocessed(context.Background(), cancelSubject)
	if err != nil || len(reqs) != 0 {
		t.Errorf("ListUnprocessed() = %v, %v; want empty, nil", reqs, err)
	}
}

func TestKafkaSource_UnmarkedRequestsAreListedAgain(t *testing.T) {
	p := &mockPoller{batch: []kafka.Message{
		inboundRecord(t, 7, inboundEvent{From: "b@x.com", Subject: "CANCEL INTERVIEW"}),
		inboundRecord(t, 5, inboundEvent{From: "a@x.com", Subject: "CANCEL INTERVIEW"}),
	}}
	s := NewKafkaSource(p, logger.Discard())

	first, err := s.ListUnprocessed(context.Background(), cancelSubject)
	if err != nil || len(first) != 2 {
		t.Fatalf("first pass = %+v, %v", first, err)
	}

	// Nothing marked, and the reader has nothing new for the next pass.
	p.pollErr = context.DeadlineExceeded
	again, err := s.ListUnprocessed(context.Background(), cancelSubject)
	if err != nil {
		t.Fatalf("second pass error = %v", err)
	}
	if len(again) != 2 || again[0].Sender != "a@x.com" || again[1].Sender != "b@x.com" {
		t.Fatalf("second pass = %+v, want both requests in offset order", again)
	}

	p.commitErr = errors.New("broker unavailable")
	if err := s.MarkProcessed(context.Background(), again[0].MessageID); err == nil {
		t.Fatal("MarkProcessed() should report the commit failure")
	}
	p.commitErr = nil
	if err := s.MarkProcessed(context.Background(), again[1].MessageID); err != nil {
		t.Fatalf("MarkProcessed() error = %v", err)
	}

	last, err := s.ListUnprocessed(context.Background(), cancelSubject)
	if err != nil {
		t.Fatal(err)
	}
	if len(last) != 1 || last[0].MessageID != again[0].MessageID {
		t.Errorf("third pass = %+v, want only the request whose commit failed", last)
	}
}

func TestMailbox(t *testing.T) {
	m := NewMailbox()
	first := m.Deliver("a@x.com", "CANCEL INTERVIEW", "Date: 2025-03-14")
	m.Deliver("b@x.com", "unrelated", "")
	third := m.Deliver("c@x.com", "re: cancel interview", "")

	reqs, err := m.ListUnprocessed(context.Background(), cancelSubject)
	if err != nil {
		t.Fatal(err)
	}
	if len(reqs) != 2 || reqs[0].MessageID != first || reqs[1].MessageID != third {
		t.Fatalf("requests = %+v", reqs)
	}

	if err := m.MarkProcessed(context.Background(), first); err != nil {
		t.Fatal(err)
	}
	reqs, _ = m.ListUnprocessed(context.Background(), cancelSubject)
	if len(reqs) != 1 || reqs[0].MessageID != third {
		t.Errorf("after mark: %+v", reqs)
	}
	if m.Marks(first) != 1 {
		t.Errorf("Marks() = %d", m.Marks(first))
	}
	if err := m.MarkProcessed(context.Background(), "99"); !errors.Is(err, ErrUnknownMessage) {
		t.Errorf("MarkProcessed(unknown) = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.ListUnprocessed(ctx, cancelSubject); err == nil {
		t.Error("expected cancelled context to be reported")
	}
}
