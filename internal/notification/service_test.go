package notification

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/config"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/storage"
)

type recordingSender struct {
	to, subject, body string
	calls             int
	err               error
}

func (r *recordingSender) Send(_ context.Context, to, subject, body string) error {
	r.calls++
	r.to, r.subject, r.body = to, subject, body
	return r.err
}

func sampleBill() storage.Bill {
	due := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	return storage.Bill{ID: 7, CustomerID: "C1", Month: "feb", Year: 2024, ConsumptionKWh: 150, AmountDue: 25, DueDate: &due}
}

func TestNewService_Providers(t *testing.T) {
	svc, err := NewService(config.NotificationConfig{}, nil)
	require.NoError(t, err)
	assert.False(t, svc.Enabled())
	assert.NoError(t, svc.BillIssued(context.Background(), storage.Customer{Email: "a@b.c"}, sampleBill()))

	_, err = NewService(config.NotificationConfig{Provider: "sendgrid"}, nil)
	assert.Error(t, err)
	_, err = NewService(config.NotificationConfig{Provider: "smtp"}, nil)
	assert.Error(t, err)
	_, err = NewService(config.NotificationConfig{Provider: "pigeon"}, nil)
	assert.Error(t, err)

	svc, err = NewService(config.NotificationConfig{Provider: "sendgrid", SendgridAPIKey: "SG.x"}, nil)
	require.NoError(t, err)
	assert.True(t, svc.Enabled())
}

func TestBillIssued(t *testing.T) {
	rs := &recordingSender{}
	svc := NewWithSender(rs, nil)
	c := storage.Customer{NationalID: "C1", Name: "Jane Doe", Email: " jane@example.com "}

	require.NoError(t, svc.BillIssued(context.Background(), c, sampleBill()))
	assert.Equal(t, 1, rs.calls)
	assert.Equal(t, "jane@example.com", rs.to)
	assert.Equal(t, "Your electricity bill for February 2024", rs.subject)
	assert.Contains(t, rs.body, "Jane Doe")
	assert.Contains(t, rs.body, "25.00")
	assert.Contains(t, rs.body, "2024-03-15")
}

func TestBillIssued_SkipsMissingEmail(t *testing.T) {
	rs := &recordingSender{}
	svc := NewWithSender(rs, nil)
	require.NoError(t, svc.BillIssued(context.Background(), storage.Customer{NationalID: "C1"}, sampleBill()))
	assert.Zero(t, rs.calls)
}

func TestBillIssued_WrapsSenderError(t *testing.T) {
	boom := errors.New("boom")
	svc := NewWithSender(&recordingSender{err: boom}, nil)
	err := svc.BillIssued(context.Background(), storage.Customer{NationalID: "C1", Email: "x@y.z"}, sampleBill())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "C1")
}

// fakeSMTP accepts one plain SMTP session and returns the DATA payload.
func fakeSMTP(t *testing.T) (string, <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	got := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		reply := func(s string) { _, _ = conn.Write([]byte(s + "\r\n")) }
		reply("220 localhost ready")
		var data strings.Builder
		inData := false
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			if inData {
				if line == ".\r\n" {
					inData = false
					got <- data.String()
					reply("250 queued")
					continue
				}
				data.WriteString(line)
				continue
			}
			switch cmd := strings.ToUpper(strings.TrimSpace(line)); {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				reply("250 localhost")
			case cmd == "DATA":
				inData = true
				reply("354 go ahead")
			case cmd == "QUIT":
				reply("221 bye")
				return
			default:
				reply("250 ok")
			}
		}
	}()
	return ln.Addr().String(), got
}

func TestSMTPSender_Plain(t *testing.T) {
	addr, got := fakeSMTP(t)
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	svc, err := NewService(config.NotificationConfig{
		Provider:       "smtp",
		SMTPHost:       host,
		SMTPPort:       port,
		SMTPEncryption: "none",
		FromAddress:    "billing@example.com",
		FromName:       "Electricity Billing",
	}, nil)
	require.NoError(t, err)

	c := storage.Customer{NationalID: "C1", Name: "John Smith", Email: "john@example.com"}
	require.NoError(t, svc.BillIssued(context.Background(), c, sampleBill()))

	select {
	case msg := <-got:
		assert.Contains(t, msg, "To: john@example.com")
		assert.Contains(t, msg, "Subject: Your electricity bill for February 2024")
	case <-time.After(5 * time.Second):
		t.Fatal("no message delivered")
	}
}
