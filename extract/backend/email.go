package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/emersion/go-mbox"
	"github.com/jhillyerd/enmime"
)

// Email extracts the subject and body of a single MIME message.
type Email struct{}

// Extract implements extract.TextBackend.
func (Email) Extract(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return messageText(io.LimitReader(f, MaxInputBytes))
}

// messageText prefers the text/plain body and falls back to the visible
// text of the HTML body.
func messageText(r io.Reader) (string, error) {
	env, err := enmime.ReadEnvelope(r)
	if err != nil {
		return "", fmt.Errorf("parse message: %w", err)
	}

	body := env.Text
	if strings.TrimSpace(body) == "" && env.HTML != "" {
		body, err = htmlText(strings.NewReader(env.HTML))
		if err != nil {
			return "", err
		}
	}

	var sb strings.Builder
	if subject := env.GetHeader("Subject"); subject != "" {
		sb.WriteString(subject)
		sb.WriteString("\n\n")
	}
	sb.WriteString(body)
	return sb.String(), nil
}

// Mailbox extracts every message of an mbox archive.
type Mailbox struct{}

const messageSeparator = "\n---\n"

// Extract implements extract.TextBackend. Messages that fail to parse are
// skipped; an archive without any readable message is an error.
func (Mailbox) Extract(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	reader := mbox.NewReader(io.LimitReader(f, MaxInputBytes))
	var (
		text    strings.Builder
		read    int
		skipped int
	)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		msg, err := reader.NextMessage()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read mbox: %w", err)
		}
		extracted, err := messageText(msg)
		if err != nil {
			skipped++
			continue
		}
		if read > 0 {
			text.WriteString(messageSeparator)
		}
		text.WriteString(extracted)
		read++
	}

	if read == 0 {
		return "", fmt.Errorf("no readable messages (%d skipped)", skipped)
	}
	return text.String(), nil
}
