package imapio

import (
	"encoding/base64"
	"fmt"

	"github.com/emersion/go-sasl"
	"github.com/sqs/go-xoauth2"
)

// Authenticate performs XOAUTH2 authentication using an access token
func (d *Dialer) Authenticate(user string, accessToken string) error {
	b64 := xoauth2.XOAuth2String(user, accessToken)
	return d.expectOK("xoauth2 authentication", fmt.Sprintf("AUTHENTICATE XOAUTH2 %s", b64))
}

// AuthenticatePlain performs SASL PLAIN authentication with an initial response
func (d *Dialer) AuthenticatePlain(username string, password string) error {
	mech, ir, err := sasl.NewPlainClient("", username, password).Start()
	if err != nil {
		return fmt.Errorf("sasl plain: %w", err)
	}
	return d.expectOK("plain authentication", fmt.Sprintf("AUTHENTICATE %s %s", mech, base64.StdEncoding.EncodeToString(ir)))
}

// Login performs LOGIN authentication using username and password
func (d *Dialer) Login(username string, password string) error {
	return d.expectOK("login", fmt.Sprintf("LOGIN %s %s", quote(username), quote(password)))
}

// expectOK runs a command once and turns a non-OK status into a ProtocolError.
// Authentication is never retried, so bad credentials do not trigger reconnects.
func (d *Dialer) expectOK(op, command string) error {
	r, err := d.Exec(command, nil, 0)
	if err != nil {
		return err
	}
	if !r.OK() {
		return &ProtocolError{
			Context: "[" + d.String() + "]",
			Text:    op + " failed",
			Data:    responseData(r),
		}
	}
	return nil
}
