package notify

import (
	"context"
	"io"
	"log"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestEmailSinkDelivers(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	ctx := context.Background()

	// suppress logging
	testcontainers.Logger = log.New(io.Discard, "", 0)

	smtp, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		Started: true,
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "haravich/fake-smtp-server",
			ExposedPorts: []string{"1025/tcp"},
			WaitingFor:   wait.ForLog("smtp://0.0.0.0:1025"),
		},
	})
	if err != nil {
		t.Skipf("smtp container unavailable: %s", err)
	}
	defer func() {
		err := smtp.Terminate(ctx)
		if err != nil {
			t.Fatal(err)
		}
	}()

	host, err := smtp.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := smtp.MappedPort(ctx, "1025")
	if err != nil {
		t.Fatal(err)
	}

	sink := NewEmailSink(EmailOptions{
		Server:       host,
		Port:         port.Int(),
		EmailAddress: "alice@email.com",
		Password:     "default",
		Recipients:   []string{"bob@email.com"},
		Hostname:     "worker-1",
	})

	err = sink.SendMessage(ctx, "earliest", []Field{
		{Name: "Earliest date", Value: "2025-01-01"},
		{Name: "Available dates", Value: "2025-01-01\n2025-02-01"},
	})
	require.NoError(t, err)
}

func TestEmailSendTimesOut(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	// accepts connections and never sends a greeting
	var conns []net.Conn
	accepted := make(chan struct{})
	go func() {
		defer close(accepted)
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			conns = append(conns, conn)
		}
	}()
	t.Cleanup(func() {
		listener.Close()
		<-accepted
		for _, c := range conns {
			c.Close()
		}
	})

	addr := listener.Addr().(*net.TCPAddr)
	sink := NewEmailSink(EmailOptions{
		Server:       "127.0.0.1",
		Port:         addr.Port,
		EmailAddress: "slotwatch@example.com",
		Recipients:   []string{"someone@example.com"},
		Timeout:      time.Millisecond * 200,
	})

	start := time.Now()
	err = sink.SendMessage(context.Background(), "status", []Field{{Name: "Status", Value: "visa is available"}})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), time.Second*5)
}
