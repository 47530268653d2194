// Package mailer sends booking correspondence over SMTP.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"net/textproto"
	"sort"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// Message is one letter. Template names the content, Data fills it.
type Message struct {
	To       string
	ToName   string
	Subject  string
	Template string
	Data     map[string]interface{}
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Client struct {
	cfg  Config
	addr string
	send sendFunc
}

func New(cfg Config) *Client {
	return &Client{
		cfg:  cfg,
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		send: smtp.SendMail,
	}
}

func (c *Client) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("mailer: empty recipient")
	}

	var auth smtp.Auth
	if c.cfg.Username != "" {
		auth = smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.Host)
	}
	if err := c.send(c.addr, auth, c.cfg.From, []string{msg.To}, c.compose(msg)); err != nil {
		return fmt.Errorf("mailer: send to %s: %w", msg.To, err)
	}
	return nil
}

func (c *Client) compose(msg *Message) []byte {
	var b strings.Builder
	header := func(k, v string) {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(v)
		b.WriteString("\r\n")
	}
	header("From", address(c.cfg.FromName, c.cfg.From))
	header("To", address(msg.ToName, msg.To))
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("Date", time.Now().Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", "text/plain; charset=UTF-8")
	if msg.Template != "" {
		header("X-Template", msg.Template)
	}
	b.WriteString("\r\n")
	b.WriteString(Render(msg))
	return []byte(b.String())
}

// Render writes the letter data as sorted "key: value" lines.
func Render(msg *Message) string {
	keys := make([]string, 0, len(msg.Data))
	for k := range msg.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\r\n", k, msg.Data[k])
	}
	return b.String()
}

func address(name, email string) string {
	if name == "" {
		return "<" + email + ">"
	}
	return mime.QEncoding.Encode("utf-8", name) + " <" + email + ">"
}

// IsPermanent reports an SMTP 5xx rejection, which a retry will not fix.
func IsPermanent(err error) bool {
	var tp *textproto.Error
	return errors.As(err, &tp) && tp.Code >= 500
}
