package inhibit_test

import (
	"github.com/MatthiasKunnen/lockscreen/pkg/inhibit"
	"io"
	"log"
)

func Example() {
	inhibitor, err := inhibit.New()
	if err != nil {
		log.Fatalf("Failed to initialize inhibitor: %v", err)
	}

	prepareForSleep := make(chan bool, 1)

	err = inhibitor.SubscribePrepareForSleep(prepareForSleep)
	if err != nil {
		log.Fatalf("Unable to subscribe to PrepareForSleep: %v", err)
	}

	var sleepInhibitor io.Closer
	inhibitSleep := func() {
		var err error
		sleepInhibitor, err = inhibitor.InhibitSleep("lockscreen", "Lock the screen before sleeping")
		if err != nil {
			log.Printf("Unable to acquire sleep inhibition lock: %v", err)
		}
	}
	inhibitSleep()

	for goSleep := range prepareForSleep {
		if goSleep {
			log.Printf("System wants to sleep, lock the screen, then allow the system to sleep\n")
			if sleepInhibitor != nil {
				if err := sleepInhibitor.Close(); err != nil {
					log.Printf("Failed to release inhibitor lock: %v", err)
				}
				sleepInhibitor = nil
			}
		} else {
			log.Printf("System is back from sleep\n")
			inhibitSleep()
		}
	}
}
