package secrets

import (
	"fmt"
	"github.com/godbus/dbus/v5"
	"strings"
)

const (
	dbusDest             = "org.freedesktop.secrets"
	dbusServiceInterface = "org.freedesktop.Secret.Service"
	dbusPath             = "/org/freedesktop/secrets"

	// noPrompt is the prompt path returned when no prompt is needed.
	noPrompt = dbus.ObjectPath("/")
)

type Secrets struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

func New() (*Secrets, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	return &Secrets{
		conn: conn,
		obj:  conn.Object(dbusDest, dbusPath),
	}, nil
}

// CollectionPath returns the object path of a collection.
//
// "default" is the alias of the default collection. Names starting with "/" are used as object
// paths unchanged; other names are collection names such as "login".
func CollectionPath(name string) dbus.ObjectPath {
	switch {
	case strings.HasPrefix(name, "/"):
		return dbus.ObjectPath(name)
	case name == "default":
		return dbus.ObjectPath(dbusPath + "/aliases/default")
	default:
		return dbus.ObjectPath(dbusPath + "/collection/" + name)
	}
}

// Lock locks the given collections and returns the objects that were locked.
func (s *Secrets) Lock(collections []string) ([]dbus.ObjectPath, error) {
	objs := make([]dbus.ObjectPath, 0, len(collections))
	for _, name := range collections {
		path := CollectionPath(name)
		if !path.IsValid() {
			return nil, fmt.Errorf("invalid collection %q", name)
		}
		objs = append(objs, path)
	}

	var locked []dbus.ObjectPath
	var prompt dbus.ObjectPath
	err := s.obj.Call(dbusServiceInterface+".Lock", 0, objs).Store(&locked, &prompt)
	if err != nil {
		return nil, fmt.Errorf("could not lock collections: %w", err)
	}

	if prompt != noPrompt && prompt != "" {
		return locked, fmt.Errorf("locking requires a prompt at %s", prompt)
	}

	return locked, nil
}
