package idle

import (
	"fmt"
	"github.com/jezek/xgb"
	"github.com/jezek/xgb/screensaver"
	"github.com/jezek/xgb/xproto"
	"log/slog"
	"time"
)

type x11IdleTimer struct {
	conn *xgb.Conn
	root xproto.Window
}

func (t *x11IdleTimer) IdleTime() (time.Duration, error) {
	info, err := screensaver.QueryInfo(t.conn, xproto.Drawable(t.root)).Reply()
	if err != nil {
		return 0, fmt.Errorf("failed to query screen saver info: %w", err)
	}

	return time.Duration(info.MsSinceUserInput) * time.Millisecond, nil
}

// NewX11Controller creates a Controller that polls the MIT-SCREEN-SAVER extension of conn every
// poll interval.
func NewX11Controller(conn *xgb.Conn, poll time.Duration, logger *slog.Logger) (Controller, error) {
	if err := screensaver.Init(conn); err != nil {
		return nil, fmt.Errorf("failed to initialize MIT-SCREEN-SAVER: %w", err)
	}

	timer := &x11IdleTimer{
		conn: conn,
		root: xproto.Setup(conn).DefaultScreen(conn).Root,
	}

	return NewPollingController(timer, poll, logger)
}
