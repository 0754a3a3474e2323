package imapio

import (
	"bufio"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	retry "github.com/StirlingMarketingGroup/go-retry"
)

var (
	nextConnNum      = 0
	nextConnNumMutex = sync.Mutex{}
)

type authMethod int

const (
	authLogin authMethod = iota
	authPlain
	authXOAuth2
)

// Dialer is a single IMAP connection. It implements Transport.
type Dialer struct {
	conn      net.Conn
	r         *bufio.Reader
	Folder    string
	Username  string
	Password  string
	Host      string
	Port      int
	Connected bool
	ConnNum   int
	auth      authMethod
}

// dialHost establishes a TLS (or, with DisableTLS, plain TCP) connection
func dialHost(host string, port int) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: DialTimeout}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	if DisableTLS {
		return dialer.Dial("tcp", addr)
	}
	var cfg *tls.Config
	if TLSSkipVerify {
		cfg = &tls.Config{InsecureSkipVerify: true}
	}
	return tls.DialWithDialer(dialer, "tcp", addr, cfg)
}

// New creates a new IMAP connection using LOGIN authentication
func New(username string, password string, host string, port int) (*Dialer, error) {
	return dial(username, password, host, port, authLogin)
}

// NewWithPlain creates a new IMAP connection using SASL PLAIN authentication
func NewWithPlain(username string, password string, host string, port int) (*Dialer, error) {
	return dial(username, password, host, port, authPlain)
}

// NewWithOAuth2 creates a new IMAP connection using XOAUTH2 authentication
func NewWithOAuth2(username string, accessToken string, host string, port int) (*Dialer, error) {
	return dial(username, accessToken, host, port, authXOAuth2)
}

func dial(username, secret, host string, port int, auth authMethod) (*Dialer, error) {
	nextConnNumMutex.Lock()
	connNum := nextConnNum
	nextConnNum++
	nextConnNumMutex.Unlock()

	d := &Dialer{
		Username: username,
		Password: secret,
		Host:     host,
		Port:     port,
		ConnNum:  connNum,
		auth:     auth,
	}

	// Retry only the connection establishment, not authentication
	err := retry.Retry(func() error {
		debugLog(d.name(), "", "establishing connection")
		return d.open()
	}, RetryCount, func(err error) error {
		debugLog(d.name(), "", "failed to connect, retrying shortly", "error", err)
		d.closeConn()
		return nil
	}, func() error {
		debugLog(d.name(), "", "retrying connection now")
		return nil
	})
	if err != nil {
		errorLog(d.name(), "", "failed to establish connection", "error", err)
		d.closeConn()
		return nil, err
	}

	if err = d.authenticate(); err != nil {
		debugLog(d.name(), "", "authentication failed", "error", err)
		_ = d.Close()
		return nil, err
	}

	return d, nil
}

// open dials the server and consumes its greeting
func (d *Dialer) open() error {
	conn, err := dialHost(d.Host, d.Port)
	if err != nil {
		return err
	}
	d.conn = conn
	d.r = bufio.NewReader(conn)
	d.Connected = true

	greeting, err := d.readResponseLine()
	if err != nil {
		d.closeConn()
		return fmt.Errorf("imap greeting: %w", err)
	}
	debugLog(d.name(), "", "server greeting", "greeting", greeting)
	if strings.HasPrefix(strings.ToUpper(greeting), "* BYE") {
		d.closeConn()
		return fmt.Errorf("imap greeting: %s", greeting)
	}
	return nil
}

func (d *Dialer) authenticate() error {
	switch d.auth {
	case authXOAuth2:
		return d.Authenticate(d.Username, d.Password)
	case authPlain:
		return d.AuthenticatePlain(d.Username, d.Password)
	default:
		return d.Login(d.Username, d.Password)
	}
}

// closeConn drops the socket without touching the selected folder
func (d *Dialer) closeConn() {
	if d.conn != nil {
		_ = d.conn.Close()
	}
	d.Connected = false
}

// Close closes the IMAP connection
func (d *Dialer) Close() (err error) {
	if d.Connected {
		debugLog(d.name(), d.Folder, "closing connection")
		err = d.conn.Close()
		d.Connected = false
		if err != nil {
			return fmt.Errorf("imap close: %w", err)
		}
	}
	return nil
}

// Reconnect closes and reopens the IMAP connection with re-authentication,
// restoring the selected folder
func (d *Dialer) Reconnect() (err error) {
	_ = d.Close()
	debugLog(d.name(), d.Folder, "reopening connection")

	if err = d.open(); err != nil {
		return fmt.Errorf("imap reconnect dial: %w", err)
	}

	if err = d.authenticate(); err != nil {
		d.closeConn()
		return fmt.Errorf("imap reconnect auth: %w", err)
	}

	if d.Folder != "" {
		r, err := d.Exec("SELECT "+quote(d.Folder), nil, 0)
		if err != nil {
			return fmt.Errorf("imap reconnect select: %w", err)
		}
		if !r.OK() {
			return fmt.Errorf("imap reconnect select: %s %s", r.Status, r.Text)
		}
	}

	return nil
}

// String identifies the connection as user@host:port
func (d *Dialer) String() string {
	return fmt.Sprintf("%s@%s:%d", d.Username, d.Host, d.Port)
}

func (d *Dialer) name() string {
	return fmt.Sprintf("IMAP%d", d.ConnNum)
}
