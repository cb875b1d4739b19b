package dpms

import (
	"fmt"
	"github.com/jezek/xgb"
	xdpms "github.com/jezek/xgb/dpms"
)

type x11Server struct {
	conn *xgb.Conn
}

// NewX11Server initializes the DPMS extension on conn.
// Returns ErrNotCapable if the server has no DPMS support or the display cannot use it.
func NewX11Server(conn *xgb.Conn) (Server, error) {
	if err := xdpms.Init(conn); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotCapable, err)
	}

	capable, err := xdpms.Capable(conn).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to query DPMS capability: %w", err)
	}
	if !capable.Capable {
		return nil, ErrNotCapable
	}

	return &x11Server{conn: conn}, nil
}

func (s *x11Server) Timeouts() (uint16, uint16, uint16, error) {
	reply, err := xdpms.GetTimeouts(s.conn).Reply()
	if err != nil {
		return 0, 0, 0, err
	}

	return reply.StandbyTimeout, reply.SuspendTimeout, reply.OffTimeout, nil
}

func (s *x11Server) Info() (Level, bool, error) {
	reply, err := xdpms.Info(s.conn).Reply()
	if err != nil {
		return 0, false, err
	}

	return Level(reply.PowerLevel), reply.State, nil
}

func (s *x11Server) SetTimeouts(standby, suspend, off uint16) error {
	return xdpms.SetTimeoutsChecked(s.conn, standby, suspend, off).Check()
}

func (s *x11Server) Enable() error {
	return xdpms.EnableChecked(s.conn).Check()
}

func (s *x11Server) Disable() error {
	return xdpms.DisableChecked(s.conn).Check()
}

func (s *x11Server) ForceLevel(level Level) error {
	return xdpms.ForceLevelChecked(s.conn, uint16(level)).Check()
}
