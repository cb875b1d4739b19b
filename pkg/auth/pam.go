package auth

import (
	"errors"
	"fmt"
	"github.com/msteinert/pam/v2"
	"log/slog"
)

// PAM is a Gateway backed by a PAM transaction.
// It is not safe for concurrent use; the lock session is the only caller.
type PAM struct {
	logger *slog.Logger
	tx     *pam.Transaction

	// candidate is only set while Verify runs.
	candidate []byte
	verifying bool
}

// NewPAM starts a PAM transaction for user using the given service name, which selects the file
// in /etc/pam.d.
func NewPAM(service string, user string, logger *slog.Logger) (*PAM, error) {
	if user == "" {
		return nil, fmt.Errorf("%w: user is empty", ErrBackend)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	p := &PAM{logger: logger}
	tx, err := pam.StartFunc(service, user, p.converse)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to start PAM transaction: %w", ErrBackend, err)
	}
	p.tx = tx

	return p, nil
}

func (p *PAM) Verify(candidate []byte) (Result, error) {
	p.candidate = candidate
	p.verifying = true
	defer func() {
		p.candidate = nil
		p.verifying = false
	}()

	return classify(p.tx.Authenticate(0))
}

// converse answers the prompts of the PAM modules. Informational messages are logged, the
// password prompts are answered with the candidate.
func (p *PAM) converse(style pam.Style, message string) (string, error) {
	switch style {
	case pam.PromptEchoOff, pam.PromptEchoOn:
		if !p.verifying {
			return "", errors.New("no password available outside of Verify")
		}
		return string(p.candidate), nil
	case pam.ErrorMsg:
		p.logger.Warn("PAM error message", slog.String("message", message))
		return "", nil
	case pam.TextInfo:
		p.logger.Info("PAM info message", slog.String("message", message))
		return "", nil
	default:
		return "", fmt.Errorf("unsupported PAM message style %d", style)
	}
}

// Close ends the PAM transaction.
func (p *PAM) Close() error {
	if p.tx == nil {
		return nil
	}

	err := p.tx.End()
	p.tx = nil
	if err != nil {
		return fmt.Errorf("failed to end PAM transaction: %w", err)
	}

	return nil
}

// classify maps the result of pam_authenticate to a Result. Errors that are a verdict about the
// credential become a plain rejection so that the cause does not travel further.
func classify(err error) (Result, error) {
	switch {
	case err == nil:
		return Accepted, nil
	case errors.Is(err, pam.ErrAuth),
		errors.Is(err, pam.ErrUserUnknown),
		errors.Is(err, pam.ErrMaxtries),
		errors.Is(err, pam.ErrCredInsufficient),
		errors.Is(err, pam.ErrPermDenied),
		errors.Is(err, pam.ErrAcctExpired):
		return Rejected, nil
	default:
		return Rejected, fmt.Errorf("%w: %w", ErrBackend, err)
	}
}
