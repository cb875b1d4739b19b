package inhibit

import (
	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestDispatch_PrepareForSleep(t *testing.T) {
	i := newInhibitor()
	c := make(chan bool, 1)
	i.prepareForSleepSubs[c] = struct{}{}

	i.dispatch(&dbus.Signal{
		Path: dbusPath,
		Name: dbusManagerInterface + ".PrepareForSleep",
		Body: []interface{}{true},
	})
	assert.True(t, <-c)

	i.dispatch(&dbus.Signal{
		Path: dbusPath,
		Name: dbusManagerInterface + ".PrepareForSleep",
		Body: []interface{}{false},
	})
	assert.False(t, <-c)
}

func TestDispatch_Ignored(t *testing.T) {
	i := newInhibitor()
	c := make(chan bool, 1)
	i.prepareForSleepSubs[c] = struct{}{}

	i.dispatch(nil)
	i.dispatch(&dbus.Signal{Path: dbusPath, Name: dbusManagerInterface + ".PrepareForShutdown", Body: []interface{}{true}})
	i.dispatch(&dbus.Signal{Path: "/other", Name: dbusManagerInterface + ".PrepareForSleep", Body: []interface{}{true}})
	i.dispatch(&dbus.Signal{Path: dbusPath, Name: dbusManagerInterface + ".PrepareForSleep"})
	i.dispatch(&dbus.Signal{Path: dbusPath, Name: dbusManagerInterface + ".PrepareForSleep", Body: []interface{}{"yes"}})

	assert.Empty(t, c)
}

func TestJoinWhat(t *testing.T) {
	assert.Equal(t, "sleep", joinWhat([]What{WhatSleep}))
	assert.Equal(t, "sleep:idle:handle-lid-switch", joinWhat([]What{WhatSleep, WhatIdle, WhatHandleLidSwitch}))
}
